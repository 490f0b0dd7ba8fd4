// Package engine reconciles two storage adapters.
//
// Sync merges each metadata collection entity-by-entity with
// last-write-wins ordering and a 1-second tie window: two differing
// updates inside the window are treated as concurrent, recorded as a
// ConflictRecord, and the local value provisionally kept. Per-entity
// merging keeps unrelated edits from different devices non-conflicting.
// Settings merge as a whole object on their own timestamp.
//
// Blobs are content-addressed, so the engine only copies ids present on
// one side; a blob present on both sides is never re-transferred. Blob
// copies within one pass run in parallel; a partially failed batch just
// means fewer blobs copied this pass, safely retried next pass.
//
// Sync is not transactional across adapters: failures return a
// SyncResult with Success=false and whatever partial counts were
// gathered. Two Sync passes against the same adapter pair must be
// externally serialized.
package engine
