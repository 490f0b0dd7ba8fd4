package bundle

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/groovekit/loopvault/internal/crypto"
	"github.com/groovekit/loopvault/internal/storage"
	"github.com/groovekit/loopvault/internal/vault"
)

// Export assembles an encrypted bundle from an adapter's vault. The
// collection allow-list and optional id filter narrow the metadata;
// only blobs referenced by surviving audio loops travel, and only when
// their mime type is allow-listed and their size is under the per-blob
// cap. Exceeding the total serialized cap aborts with a
// *storage.SizeLimitError and no partial artifact.
func Export(ctx context.Context, adapter storage.Adapter, passphrase []byte, opts Options) (*Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta, err := loadMeta(ctx, adapter)
	if err != nil {
		return nil, err
	}

	filtered := filterMeta(meta, opts)

	metaJSON, err := json.Marshal(filtered)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	envelope, err := crypto.Encrypt(metaJSON, passphrase)
	if err != nil {
		return nil, fmt.Errorf("encrypt metadata: %w", err)
	}

	bundle := &Bundle{
		Version:          Version,
		CreatedAt:        time.Now(),
		DeviceID:         meta.DeviceID,
		MetadataEnvelope: envelope,
		Manifest:         vault.NewManifest(),
		Blobs:            make(map[string]string),
	}

	entriesByID, err := blobEntries(ctx, adapter)
	if err != nil {
		return nil, err
	}

	for _, id := range filtered.ReferencedBlobIDs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := adapter.GetBlob(ctx, id)
		if err == storage.ErrNotFound {
			continue // Dangling reference; metadata still travels
		}
		if err != nil {
			return nil, err
		}

		entry, ok := entriesByID[id]
		if !ok {
			entry = vault.BlobEntry{
				ID:        id,
				Size:      int64(len(data)),
				MimeType:  "application/octet-stream",
				CreatedAt: time.Now(),
				Checksum:  vault.HashBytes(data),
			}
		}
		if !MimeTypeAllowed(entry.MimeType) || entry.Size > MaxBlobSize {
			continue
		}
		bundle.Manifest.Blobs[id] = entry
		bundle.Blobs[id] = base64.StdEncoding.EncodeToString(data)
	}

	serialized, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("marshal bundle: %w", err)
	}
	if err := bundleSizeError(int64(len(serialized))); err != nil {
		return nil, err
	}
	return bundle, nil
}

// blobEntries indexes the adapter's blob catalog by id, once, so the
// export loop never rescans it. Stored entries carry the real mime
// type; ids with no entry get a synthesized one in Export.
func blobEntries(ctx context.Context, adapter storage.Adapter) (map[string]vault.BlobEntry, error) {
	entries, err := adapter.ListBlobs(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]vault.BlobEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	return byID, nil
}

// bundleSizeError enforces the total serialized cap.
func bundleSizeError(size int64) error {
	if size > MaxBundleSize {
		return &storage.SizeLimitError{What: "bundle", Size: size, Limit: MaxBundleSize}
	}
	return nil
}

// Validate structurally checks a bundle without decrypting anything, so
// a caller can reject garbage before prompting for a passphrase.
func Validate(b *Bundle) *Report {
	report := &Report{}
	addErr := func(format string, args ...any) {
		report.Errors = append(report.Errors, fmt.Sprintf(format, args...))
	}
	addWarn := func(format string, args ...any) {
		report.Warnings = append(report.Warnings, fmt.Sprintf(format, args...))
	}

	if b == nil {
		addErr("bundle is empty")
		return report
	}
	if b.Version < 1 || b.Version > Version {
		addErr("unsupported bundle version %d (supported: <= %d)", b.Version, Version)
	}
	if b.MetadataEnvelope == nil {
		addErr("missing metadata envelope")
	} else {
		env := b.MetadataEnvelope
		if env.KDF.Salt == "" || env.IV == "" || env.Ciphertext == "" {
			addErr("metadata envelope is missing salt, iv or ciphertext")
		}
		if env.KDF.Iterations <= 0 {
			addErr("metadata envelope has an invalid KDF iteration count")
		}
	}
	if b.Manifest == nil {
		addErr("missing manifest")
	} else if b.Manifest.Blobs == nil {
		addErr("manifest has no blob map")
	}

	if b.Manifest != nil && b.Manifest.Blobs != nil {
		for id, entry := range b.Manifest.Blobs {
			if _, ok := b.Blobs[id]; !ok {
				addWarn("manifest blob %s has no payload", shortID(id))
			}
			if !MimeTypeAllowed(entry.MimeType) {
				addWarn("blob %s has disallowed mime type %q", shortID(id), entry.MimeType)
			}
			if entry.Size > MaxBlobSize {
				addWarn("blob %s exceeds the per-blob cap (%d bytes)", shortID(id), entry.Size)
			}
		}
		for id := range b.Blobs {
			if _, ok := b.Manifest.Blobs[id]; !ok {
				addWarn("blob payload %s is not in the manifest", shortID(id))
			}
		}
	}

	if serialized, err := json.Marshal(b); err == nil {
		if err := bundleSizeError(int64(len(serialized))); err != nil {
			addErr("%s", err)
		}
	}

	report.Valid = len(report.Errors) == 0
	return report
}

// Import validates, decrypts and merges a bundle into an adapter's
// vault. Blobs import before entities since entities may reference
// them. Entities dedupe by id presence only: a bundle is a one-shot
// transfer, not a live reconciliation. A wrong passphrase surfaces as a
// failed result, never a generic parse error.
func Import(ctx context.Context, adapter storage.Adapter, b *Bundle, passphrase []byte) (*ImportResult, error) {
	result := newImportResult()

	if err := ctx.Err(); err != nil {
		return result.fail(err.Error()), err
	}

	report := Validate(b)
	if !report.Valid {
		result.Errors = append(result.Errors, report.Errors...)
		return result, nil
	}

	metaJSON, err := crypto.Decrypt(b.MetadataEnvelope, passphrase)
	if err != nil {
		var decErr *crypto.DecryptionError
		if errors.As(err, &decErr) {
			return result.fail(decErr.Error()), nil
		}
		return result.fail(err.Error()), err
	}
	var incoming vault.VaultMeta
	if err := json.Unmarshal(metaJSON, &incoming); err != nil {
		return result.fail(fmt.Sprintf("decrypted metadata is not a vault document: %v", err)), nil
	}

	meta, err := loadMeta(ctx, adapter)
	if err != nil {
		return result.fail(err.Error()), err
	}

	if err := importBlobs(ctx, adapter, b, result); err != nil {
		return result.fail(err.Error()), err
	}
	importEntities(meta, &incoming, result)

	meta.UpdatedAt = time.Now()
	mergedJSON, err := json.Marshal(meta)
	if err != nil {
		return result.fail(err.Error()), err
	}
	if err := adapter.Set(ctx, storage.MetaKey, mergedJSON); err != nil {
		return result.fail(err.Error()), err
	}

	result.Success = true
	return result, nil
}

// importBlobs copies bundle blobs into the adapter. Disallowed mime
// types and checksum mismatches count as invalid; an id already present
// is a duplicate and is never overwritten.
func importBlobs(ctx context.Context, adapter storage.Adapter, b *Bundle, result *ImportResult) error {
	for id, encoded := range b.Blobs {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry, ok := b.Manifest.Blobs[id]
		if !ok {
			result.Skipped.Invalid++
			continue
		}
		if !MimeTypeAllowed(entry.MimeType) {
			result.Skipped.Invalid++
			continue
		}

		present, err := adapter.HasBlob(ctx, id)
		if err != nil {
			return err
		}
		if present {
			result.Skipped.Duplicates++
			continue
		}

		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			result.Skipped.Invalid++
			result.Errors = append(result.Errors, fmt.Sprintf("blob %s: malformed base64", shortID(id)))
			continue
		}
		if int64(len(data)) > MaxBlobSize {
			result.Skipped.Invalid++
			result.Errors = append(result.Errors, fmt.Sprintf("blob %s: exceeds the per-blob cap", shortID(id)))
			continue
		}
		if vault.HashBytes(data) != id {
			result.Skipped.Invalid++
			result.Errors = append(result.Errors, fmt.Sprintf("blob %s: checksum mismatch", shortID(id)))
			continue
		}

		if _, err := adapter.PutBlob(ctx, data, entry.MimeType); err != nil {
			return err
		}
		result.Imported["blobs"]++
	}
	return nil
}

// importEntities merges incoming collections into the current vault by
// id presence only, validating shape before any mutation.
func importEntities(meta, incoming *vault.VaultMeta, result *ImportResult) {
	meta.Projects = importList(vault.CollectionProjects, meta.Projects, incoming.Projects, result)
	meta.ReferenceLibraries = importList(vault.CollectionReferenceLibraries, meta.ReferenceLibraries, incoming.ReferenceLibraries, result)
	meta.KnowledgeEntries = importList(vault.CollectionKnowledgeEntries, meta.KnowledgeEntries, incoming.KnowledgeEntries, result)
	meta.LaneTemplates = importList(vault.CollectionLaneTemplates, meta.LaneTemplates, incoming.LaneTemplates, result)
	meta.ChordProgressions = importList(vault.CollectionChordProgressions, meta.ChordProgressions, incoming.ChordProgressions, result)
	meta.AudioLoops = importList(vault.CollectionAudioLoops, meta.AudioLoops, incoming.AudioLoops, result)
	meta.ProjectClips = importList(vault.CollectionProjectClips, meta.ProjectClips, incoming.ProjectClips, result)
}

func importList[T vault.Entity](entityType string, existing, incoming []T, result *ImportResult) []T {
	present := make(map[string]bool, len(existing))
	for _, e := range existing {
		present[e.EntityID()] = true
	}

	for _, e := range incoming {
		if present[e.EntityID()] {
			result.Skipped.Duplicates++
			continue
		}
		raw, err := json.Marshal(e)
		if err != nil {
			result.Skipped.Invalid++
			continue
		}
		if err := vault.ValidateEntity(entityType, raw); err != nil {
			result.Skipped.Invalid++
			continue
		}
		existing = append(existing, e)
		present[e.EntityID()] = true
		result.Imported[entityType]++
	}
	return existing
}

func loadMeta(ctx context.Context, adapter storage.Adapter) (*vault.VaultMeta, error) {
	data, err := adapter.Get(ctx, storage.MetaKey)
	if err == storage.ErrNotFound {
		return vault.NewVaultMeta(""), nil
	}
	if err != nil {
		return nil, err
	}
	var meta vault.VaultMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("corrupt vault metadata: %w", err)
	}
	return &meta, nil
}

// filterMeta applies the collection allow-list and optional id filter.
func filterMeta(meta *vault.VaultMeta, opts Options) *vault.VaultMeta {
	collections := opts.collectionSet()
	ids := opts.idSet()

	filtered := &vault.VaultMeta{
		SchemaVersion: meta.SchemaVersion,
		DeviceID:      meta.DeviceID,
		UpdatedAt:     meta.UpdatedAt,
	}
	if collections[vault.CollectionProjects] {
		filtered.Projects = filterList(meta.Projects, ids)
	}
	if collections[vault.CollectionReferenceLibraries] {
		filtered.ReferenceLibraries = filterList(meta.ReferenceLibraries, ids)
	}
	if collections[vault.CollectionKnowledgeEntries] {
		filtered.KnowledgeEntries = filterList(meta.KnowledgeEntries, ids)
	}
	if collections[vault.CollectionLaneTemplates] {
		filtered.LaneTemplates = filterList(meta.LaneTemplates, ids)
	}
	if collections[vault.CollectionChordProgressions] {
		filtered.ChordProgressions = filterList(meta.ChordProgressions, ids)
	}
	if collections[vault.CollectionAudioLoops] {
		filtered.AudioLoops = filterList(meta.AudioLoops, ids)
	}
	if collections[vault.CollectionProjectClips] {
		filtered.ProjectClips = filterList(meta.ProjectClips, ids)
	}
	return filtered
}

func filterList[T vault.Entity](list []T, ids map[string]bool) []T {
	if ids == nil {
		return list
	}
	var out []T
	for _, e := range list {
		if ids[e.EntityID()] {
			out = append(out, e)
		}
	}
	return out
}

func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}
