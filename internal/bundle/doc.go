// Package bundle serializes an encrypted, size-bounded snapshot of vault
// metadata plus referenced audio blobs into a single transportable
// artifact, and reverses the operation on import.
//
// Metadata always travels inside a crypto envelope; blob bytes travel
// base64-encoded next to a manifest of id/size/mimeType/checksum. Hard
// limits: 50MB per blob, 500MB per serialized bundle, and a fixed audio
// mime-type allow-list (plus a generic binary fallback) enforced on both
// export and import.
//
// A bundle is a one-shot manual transfer, not a live reconciliation:
// import deduplicates entities by id presence only and never overwrites
// an existing blob. How the artifact moves between devices (file share,
// folder sync) is the caller's concern.
package bundle
