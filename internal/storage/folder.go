package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/groovekit/loopvault/internal/crypto"
	"github.com/groovekit/loopvault/internal/vault"
)

// FolderDatabaseName is the vault database filename inside a sync folder.
const FolderDatabaseName = "vault.db"

// FolderAdapter stores a vault inside a directory that an external
// mechanism (network share, Dropbox-style folder sync) replicates
// between devices. Because the folder's contents leave the device,
// every value and blob is sealed in a crypto envelope before it is
// written; the replica never holds plaintext. Blob ids remain plaintext
// content hashes so deduplication and sync diffing keep working.
//
// The adapter itself never moves bytes off the machine; its sync
// surface only reports that replication is delegated.
type FolderAdapter struct {
	*LocalAdapter
	dir        string
	passphrase []byte
}

var _ Adapter = (*FolderAdapter)(nil)

// OpenFolder opens or creates a folder-based vault at dir. All stored
// values are sealed under the passphrase; reading them back with a
// different passphrase fails with a *crypto.DecryptionError.
func OpenFolder(dir string, passphrase []byte) (*FolderAdapter, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, &StorageError{Op: "open", Key: dir, Err: fmt.Errorf("create sync folder: %w", err)}
	}
	local, err := OpenLocal(filepath.Join(dir, FolderDatabaseName))
	if err != nil {
		return nil, err
	}
	// Own copy: the caller clears its passphrase independently
	pass := make([]byte, len(passphrase))
	copy(pass, passphrase)
	return &FolderAdapter{LocalAdapter: local, dir: dir, passphrase: pass}, nil
}

// Dir returns the sync folder path.
func (a *FolderAdapter) Dir() string { return a.dir }

// Kind returns KindFolder.
func (a *FolderAdapter) Kind() Kind { return KindFolder }

// Close clears the passphrase and closes the database.
func (a *FolderAdapter) Close() error {
	crypto.ClearBytes(a.passphrase)
	return a.LocalAdapter.Close()
}

// Capabilities reports the folder adapter's capability set. Replication
// is external, so SupportsSync is true but Sync remains a no-op.
func (a *FolderAdapter) Capabilities() Capabilities {
	return Capabilities{
		SupportsBlobs:      true,
		SupportsEncryption: true,
		SupportsSync:       true,
		MaxBlobSize:        MaxLocalBlobSize,
	}
}

// Set seals a value before storing it.
func (a *FolderAdapter) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := a.seal(value)
	if err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	return a.LocalAdapter.Set(ctx, key, sealed)
}

// Get retrieves and opens a sealed value.
func (a *FolderAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := a.LocalAdapter.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return a.open(sealed)
}

// PutBlob seals blob bytes and stores them under the plaintext content
// hash. The entry describes the plaintext; only the stored bytes are
// sealed.
func (a *FolderAdapter) PutBlob(ctx context.Context, data []byte, mimeType string) (*vault.BlobEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if int64(len(data)) > MaxLocalBlobSize {
		return nil, &SizeLimitError{What: "blob", Size: int64(len(data)), Limit: MaxLocalBlobSize}
	}

	id := vault.HashBytes(data)
	sealed, err := a.seal(data)
	if err != nil {
		return nil, &StorageError{Op: "putBlob", Key: id, Err: err}
	}
	return a.storeBlob(vault.BlobEntry{
		ID:        id,
		Size:      int64(len(data)),
		MimeType:  mimeType,
		CreatedAt: time.Now(),
		Checksum:  id,
	}, sealed)
}

// GetBlob retrieves and opens a sealed blob, verifying the plaintext
// against its content-addressed id.
func (a *FolderAdapter) GetBlob(ctx context.Context, id string) ([]byte, error) {
	sealed, err := a.LocalAdapter.GetBlob(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := a.open(sealed)
	if err != nil {
		return nil, err
	}
	if vault.HashBytes(data) != id {
		return nil, &StorageError{Op: "getBlob", Key: id, Err: fmt.Errorf("content hash mismatch")}
	}
	return data, nil
}

// SyncStatus reports the delegated replication state.
func (a *FolderAdapter) SyncStatus(ctx context.Context) (*SyncStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &SyncStatus{State: "delegated", Pending: 0}, nil
}

func (a *FolderAdapter) seal(value []byte) ([]byte, error) {
	env, err := crypto.Encrypt(value, a.passphrase)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func (a *FolderAdapter) open(sealed []byte) ([]byte, error) {
	var env crypto.Envelope
	if err := json.Unmarshal(sealed, &env); err != nil {
		return nil, fmt.Errorf("folder value is not a sealed envelope: %w", err)
	}
	return crypto.Decrypt(&env, a.passphrase)
}
