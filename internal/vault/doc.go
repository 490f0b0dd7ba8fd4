// Package vault defines the synchronizable data model for loopvault.
//
// VaultMeta is the root document: a schema-versioned set of optional
// collections (projects, lane templates, chord progressions, audio loops,
// project clips, reference libraries, knowledge entries) plus whole-object
// settings. Every collection item carries a caller-assigned unique id and
// an authoritative updatedAt timestamp used for merge ordering.
//
// Content hashes are deterministic SHA-256 fingerprints over only the
// performance-affecting fields of an entity, independent of its id, so the
// same musical content re-imported under a different id can be recognized.
//
// ConflictRecord captures both sides of a concurrent edit; its resolution
// is immutable once set.
package vault
