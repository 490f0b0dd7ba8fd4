package bundle

import (
	"time"

	"github.com/groovekit/loopvault/internal/crypto"
	"github.com/groovekit/loopvault/internal/vault"
)

const (
	// Version is the current bundle format version.
	Version = 1

	// MaxBlobSize caps a single exported blob (50MB).
	MaxBlobSize = 50 << 20

	// MaxBundleSize caps the serialized bundle artifact (500MB).
	MaxBundleSize = 500 << 20
)

// allowedMimeTypes is the fixed allow-list for bundled blobs: common
// audio container formats plus an explicit generic-binary fallback.
var allowedMimeTypes = map[string]bool{
	"audio/wav":                true,
	"audio/x-wav":              true,
	"audio/mpeg":               true,
	"audio/mp4":                true,
	"audio/ogg":                true,
	"audio/webm":               true,
	"audio/flac":               true,
	"audio/aac":                true,
	"application/octet-stream": true,
}

// MimeTypeAllowed reports whether a blob mime type may travel in a
// bundle.
func MimeTypeAllowed(mimeType string) bool {
	return allowedMimeTypes[mimeType]
}

// exportableCollections is the collection allow-list applied on export.
var exportableCollections = []string{
	vault.CollectionProjects,
	vault.CollectionReferenceLibraries,
	vault.CollectionKnowledgeEntries,
	vault.CollectionLaneTemplates,
	vault.CollectionChordProgressions,
	vault.CollectionAudioLoops,
	vault.CollectionProjectClips,
}

// Bundle is the offline transfer artifact. Blob bytes are
// base64-encoded; metadata is opaque until the envelope is opened.
type Bundle struct {
	Version          int               `json:"version"`
	CreatedAt        time.Time         `json:"createdAt"`
	DeviceID         string            `json:"deviceId"`
	MetadataEnvelope *crypto.Envelope  `json:"metadataEnvelope"`
	Manifest         *vault.Manifest   `json:"manifest"`
	Blobs            map[string]string `json:"blobs"`
}

// Options narrows an export. A nil Collections slice exports every
// exportable collection; a non-nil IDs slice keeps only entities whose
// id is listed (blobs follow the surviving audio loops).
type Options struct {
	Collections []string
	IDs         []string
}

func (o Options) collectionSet() map[string]bool {
	set := make(map[string]bool)
	if o.Collections == nil {
		for _, c := range exportableCollections {
			set[c] = true
		}
		return set
	}
	for _, c := range o.Collections {
		set[c] = true
	}
	return set
}

func (o Options) idSet() map[string]bool {
	if o.IDs == nil {
		return nil
	}
	set := make(map[string]bool, len(o.IDs))
	for _, id := range o.IDs {
		set[id] = true
	}
	return set
}

// SkippedCounts breaks down entities and blobs an import left alone.
type SkippedCounts struct {
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
}

// ImportResult reports per-collection import counts. Nothing is ever
// silently coerced: every rejected item lands in a Skipped counter or
// the Errors list.
type ImportResult struct {
	Success  bool           `json:"success"`
	Imported map[string]int `json:"imported"`
	Skipped  SkippedCounts  `json:"skipped"`
	Errors   []string       `json:"errors,omitempty"`
}

func newImportResult() *ImportResult {
	return &ImportResult{Imported: make(map[string]int)}
}

func (r *ImportResult) fail(msg string) *ImportResult {
	r.Success = false
	r.Errors = append(r.Errors, msg)
	return r
}

// Report is the outcome of structural validation. Errors make a bundle
// unusable; warnings flag items import will skip.
type Report struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}
