package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/groovekit/loopvault/internal/vault"
)

// Bucket names
var (
	kvBucket       = []byte("kv")       // Opaque key-value namespace
	blobsBucket    = []byte("blobs")    // Content-addressed blob bytes
	blobMetaBucket = []byte("blobmeta") // BlobEntry JSON per blob id
	configBucket   = []byte("config")   // Version, timestamps
)

// Config keys
var (
	configVersion  = []byte("version")
	configCreated  = []byte("created")
	configModified = []byte("modified")
)

// MaxLocalBlobSize caps a single blob in the local adapter (50MB),
// matching the bundle per-blob cap so exports never discover an
// untransportable blob.
const MaxLocalBlobSize = 50 << 20

// LocalAdapter is a purely local, bbolt-backed Adapter. Its sync surface
// is a fixed no-op.
type LocalAdapter struct {
	path  string
	db    *bolt.DB
	ready bool
}

var _ Adapter = (*LocalAdapter)(nil)

// OpenLocal opens or creates a local vault database at path.
func OpenLocal(path string) (*LocalAdapter, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, &StorageError{Op: "open", Key: path, Err: err}
	}
	return &LocalAdapter{path: path, db: db}, nil
}

// Kind returns KindLocal.
func (a *LocalAdapter) Kind() Kind { return KindLocal }

// Capabilities reports the local adapter's fixed capability set.
func (a *LocalAdapter) Capabilities() Capabilities {
	return Capabilities{
		SupportsBlobs:      true,
		SupportsEncryption: false,
		SupportsSync:       false,
		MaxBlobSize:        MaxLocalBlobSize,
	}
}

// Init creates the bucket structure. Safe to call repeatedly.
func (a *LocalAdapter) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := a.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{kvBucket, blobsBucket, blobMetaBucket, configBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		config := tx.Bucket(configBucket)
		if config.Get(configVersion) != nil {
			return nil // Already initialized
		}
		if err := config.Put(configVersion, []byte("1")); err != nil {
			return err
		}
		now, _ := time.Now().MarshalBinary()
		if err := config.Put(configCreated, now); err != nil {
			return err
		}
		return config.Put(configModified, now)
	})
	if err != nil {
		return &StorageError{Op: "init", Err: err}
	}
	a.ready = true
	return nil
}

// IsReady reports whether Init has completed on this instance.
func (a *LocalAdapter) IsReady() bool { return a.ready }

// Close closes the database.
func (a *LocalAdapter) Close() error {
	a.ready = false
	return a.db.Close()
}

// Get retrieves a value. A missing key returns ErrNotFound, not a
// StorageError.
func (a *LocalAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var value []byte
	err := a.db.View(func(tx *bolt.Tx) error {
		kv := tx.Bucket(kvBucket)
		if kv == nil {
			return fmt.Errorf("kv bucket not found")
		}
		data := kv.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		// Copy out: the slice is only valid during the transaction
		value = append([]byte(nil), data...)
		return nil
	})
	if err == ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StorageError{Op: "get", Key: key, Err: err}
	}
	return value, nil
}

// Set stores a value.
func (a *LocalAdapter) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := a.db.Update(func(tx *bolt.Tx) error {
		if err := a.touchModified(tx); err != nil {
			return err
		}
		return tx.Bucket(kvBucket).Put([]byte(key), value)
	})
	if err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (a *LocalAdapter) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := a.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(kvBucket).Delete([]byte(key))
	})
	if err != nil {
		return &StorageError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// Has reports whether a key exists.
func (a *LocalAdapter) Has(ctx context.Context, key string) (bool, error) {
	_, err := a.Get(ctx, key)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Keys returns all keys with the given prefix, in bbolt's sorted order.
func (a *LocalAdapter) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	err := a.db.View(func(tx *bolt.Tx) error {
		kv := tx.Bucket(kvBucket)
		if kv == nil {
			return fmt.Errorf("kv bucket not found")
		}
		return kv.ForEach(func(k, v []byte) error {
			if strings.HasPrefix(string(k), prefix) {
				keys = append(keys, string(k))
			}
			return nil
		})
	})
	if err != nil {
		return nil, &StorageError{Op: "keys", Key: prefix, Err: err}
	}
	return keys, nil
}

// PutBlob stores blob bytes under their content hash. Storing the same
// bytes twice returns the same id and stores them once.
func (a *LocalAdapter) PutBlob(ctx context.Context, data []byte, mimeType string) (*vault.BlobEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if int64(len(data)) > MaxLocalBlobSize {
		return nil, &SizeLimitError{What: "blob", Size: int64(len(data)), Limit: MaxLocalBlobSize}
	}

	id := vault.HashBytes(data)
	return a.storeBlob(vault.BlobEntry{
		ID:        id,
		Size:      int64(len(data)),
		MimeType:  mimeType,
		CreatedAt: time.Now(),
		Checksum:  id,
	}, data)
}

// storeBlob writes blob bytes and their entry in one transaction,
// deduplicating by id. The stored bytes need not be the bytes the entry
// describes: an encrypting adapter stores sealed bytes under the
// plaintext content hash.
func (a *LocalAdapter) storeBlob(entry vault.BlobEntry, data []byte) (*vault.BlobEntry, error) {
	err := a.db.Update(func(tx *bolt.Tx) error {
		blobs := tx.Bucket(blobsBucket)
		meta := tx.Bucket(blobMetaBucket)

		if existing := meta.Get([]byte(entry.ID)); existing != nil {
			// Content-addressed dedup: keep the original entry
			return json.Unmarshal(existing, &entry)
		}

		entryJSON, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if err := blobs.Put([]byte(entry.ID), data); err != nil {
			return err
		}
		if err := meta.Put([]byte(entry.ID), entryJSON); err != nil {
			return err
		}
		return a.touchModified(tx)
	})
	if err != nil {
		return nil, &StorageError{Op: "putBlob", Key: entry.ID, Err: err}
	}
	return &entry, nil
}

// GetBlob retrieves blob bytes by id. A missing blob returns ErrNotFound.
func (a *LocalAdapter) GetBlob(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := a.db.View(func(tx *bolt.Tx) error {
		blobs := tx.Bucket(blobsBucket)
		if blobs == nil {
			return fmt.Errorf("blobs bucket not found")
		}
		b := blobs.Get([]byte(id))
		if b == nil {
			return ErrNotFound
		}
		data = append([]byte(nil), b...)
		return nil
	})
	if err == ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StorageError{Op: "getBlob", Key: id, Err: err}
	}
	return data, nil
}

// DeleteBlob removes a blob and its entry.
func (a *LocalAdapter) DeleteBlob(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := a.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(blobsBucket).Delete([]byte(id)); err != nil {
			return err
		}
		return tx.Bucket(blobMetaBucket).Delete([]byte(id))
	})
	if err != nil {
		return &StorageError{Op: "deleteBlob", Key: id, Err: err}
	}
	return nil
}

// HasBlob reports whether a blob exists.
func (a *LocalAdapter) HasBlob(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var found bool
	err := a.db.View(func(tx *bolt.Tx) error {
		blobs := tx.Bucket(blobsBucket)
		if blobs == nil {
			return fmt.Errorf("blobs bucket not found")
		}
		found = blobs.Get([]byte(id)) != nil
		return nil
	})
	if err != nil {
		return false, &StorageError{Op: "hasBlob", Key: id, Err: err}
	}
	return found, nil
}

// ListBlobs returns entries for all stored blobs.
func (a *LocalAdapter) ListBlobs(ctx context.Context) ([]vault.BlobEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entries []vault.BlobEntry
	err := a.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(blobMetaBucket)
		if meta == nil {
			return fmt.Errorf("blobmeta bucket not found")
		}
		return meta.ForEach(func(k, v []byte) error {
			var entry vault.BlobEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, &StorageError{Op: "listBlobs", Err: err}
	}
	return entries, nil
}

// SyncStatus returns the fixed no-op status of a purely local adapter.
func (a *LocalAdapter) SyncStatus(ctx context.Context) (*SyncStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &SyncStatus{State: "local", Pending: 0}, nil
}

// Sync is a no-op for the local adapter.
func (a *LocalAdapter) Sync(ctx context.Context) error {
	return ctx.Err()
}

// PendingChanges always reports zero for the local adapter.
func (a *LocalAdapter) PendingChanges(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return 0, nil
}

// Compact creates a compacted copy of the database, removing unused
// space. Useful after deleting blobs to reclaim disk space.
func (a *LocalAdapter) Compact() error {
	srcPath := a.db.Path()
	tmpPath := srcPath + ".compact"

	dst, err := bolt.Open(tmpPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}

	err = a.db.View(func(srcTx *bolt.Tx) error {
		return dst.Update(func(dstTx *bolt.Tx) error {
			return srcTx.ForEach(func(name []byte, srcBucket *bolt.Bucket) error {
				dstBucket, err := dstTx.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				return srcBucket.ForEach(func(k, v []byte) error {
					return dstBucket.Put(k, v)
				})
			})
		})
	})

	if err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close compact database: %w", err)
	}

	if err := a.db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close source database: %w", err)
	}

	// Atomic replace
	backupPath := srcPath + ".backup"
	if err := os.Rename(srcPath, backupPath); err != nil {
		return fmt.Errorf("failed to backup original: %w", err)
	}
	if err := os.Rename(tmpPath, srcPath); err != nil {
		os.Rename(backupPath, srcPath) // rollback
		return fmt.Errorf("failed to replace database: %w", err)
	}
	os.Remove(backupPath)

	a.db, err = bolt.Open(srcPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}
	return nil
}

func (a *LocalAdapter) touchModified(tx *bolt.Tx) error {
	config := tx.Bucket(configBucket)
	if config == nil {
		return nil
	}
	now, _ := time.Now().MarshalBinary()
	return config.Put(configModified, now)
}
