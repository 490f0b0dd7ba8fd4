// Package conflict turns persisted conflict records into something an
// operator can act on: human-readable summaries of what diverged, and a
// resolution path that validates the chosen side before committing it
// back into the vault document.
//
// Resolution is explicit and whole-entity: the operator picks the local
// or the remote value, never a field-level splice. A committed
// resolution is immutable.
package conflict
