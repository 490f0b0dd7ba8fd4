package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/groovekit/loopvault/internal/vault"
)

// Kind identifies a storage backend. The enumeration is closed: new
// backends implement the Adapter contract under a new Kind instead of
// being special-cased by string comparison.
type Kind int

const (
	KindLocal Kind = iota
	KindFolder
	KindBundle
)

// String returns the canonical name of a kind.
func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindFolder:
		return "remote-folder-based"
	case KindBundle:
		return "remote-bundle-based"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ErrNotFound is returned by Get for a missing key and GetBlob for a
// missing blob. It is a sentinel, distinguishable from an I/O fault.
var ErrNotFound = errors.New("not found")

// StorageError reports an adapter I/O fault. It is propagated, never
// silently swallowed.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// SizeLimitError reports a blob or bundle exceeding its cap. Over-cap
// data is rejected at the boundary, never truncated.
type SizeLimitError struct {
	What  string
	Size  int64
	Limit int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("%s size %d exceeds limit %d", e.What, e.Size, e.Limit)
}

// Capabilities describes what an adapter supports so callers can branch
// without inspecting concrete types.
type Capabilities struct {
	SupportsBlobs      bool
	SupportsEncryption bool
	SupportsSync       bool
	MaxBlobSize        int64
}

// SyncStatus describes background sync state for adapters that have it.
type SyncStatus struct {
	State        string    `json:"state"`
	LastSyncedAt time.Time `json:"lastSyncedAt,omitempty"`
	Pending      int       `json:"pending"`
}

// Adapter is the uniform storage backend contract.
//
// Init and IsReady are idempotent; IsReady must be trustworthy before
// any other call except Init.
type Adapter interface {
	Kind() Kind
	Capabilities() Capabilities

	Init(ctx context.Context) error
	IsReady() bool
	Close() error

	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context, prefix string) ([]string, error)

	PutBlob(ctx context.Context, data []byte, mimeType string) (*vault.BlobEntry, error)
	GetBlob(ctx context.Context, id string) ([]byte, error)
	DeleteBlob(ctx context.Context, id string) error
	HasBlob(ctx context.Context, id string) (bool, error)
	ListBlobs(ctx context.Context) ([]vault.BlobEntry, error)

	SyncStatus(ctx context.Context) (*SyncStatus, error)
	Sync(ctx context.Context) error
	PendingChanges(ctx context.Context) (int, error)
}

// MetaKey is the key-value namespace key holding the serialized
// VaultMeta document.
const MetaKey = "vault/meta"

// ConflictKeyPrefix namespaces persisted conflict records.
const ConflictKeyPrefix = "conflict/"
