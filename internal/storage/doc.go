// Package storage defines the vault storage backend contract and its
// bbolt-backed local implementation.
//
// An Adapter exposes three surfaces:
//   - an opaque key-value namespace (Get/Set/Delete/Has/Keys)
//   - a content-addressed blob store (PutBlob/GetBlob/...); a blob's id
//     always equals the SHA-256 of its bytes, giving free deduplication
//     and tamper detection
//   - a sync-status surface for backends with background sync; the local
//     adapter returns a fixed no-op status
//
// Adapter kinds form a closed enumeration, and a Capabilities flag set
// lets callers branch without inspecting concrete types.
//
// Failure semantics: operations fail with a typed *StorageError rather
// than silently defaulting, except Get on a missing key, which returns
// the sentinel ErrNotFound.
//
// The key-value namespace and blob store are exclusively owned by the
// adapter instance wrapping them; two adapter instances must never wrap
// the same physical backing store concurrently without external locking.
package storage
