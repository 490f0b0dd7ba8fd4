package bundle

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groovekit/loopvault/internal/crypto"
	"github.com/groovekit/loopvault/internal/storage"
	"github.com/groovekit/loopvault/internal/vault"
)

var bundleBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newBundleAdapter(t *testing.T) *storage.LocalAdapter {
	t.Helper()
	adapter, err := storage.OpenLocal(filepath.Join(t.TempDir(), "test.loopvault"))
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Close() })
	require.NoError(t, adapter.Init(context.Background()))
	return adapter
}

func putTestMeta(t *testing.T, adapter storage.Adapter, meta *vault.VaultMeta) {
	t.Helper()
	data, err := json.Marshal(meta)
	require.NoError(t, err)
	require.NoError(t, adapter.Set(context.Background(), storage.MetaKey, data))
}

func laneTemplate(id, name string) vault.LaneTemplateRef {
	lt := vault.LaneTemplateRef{
		ID:   id,
		Name: name,
		Type: vault.LaneTypeMelody,
		Notes: []vault.Note{
			{Pitch: 60, StartBeat: 0, Duration: 1, Velocity: 100},
			{Pitch: 64, StartBeat: 1, Duration: 1, Velocity: 96},
		},
		Bars:      1,
		UpdatedAt: bundleBase,
	}
	lt.ContentHash = lt.ComputeContentHash()
	return lt
}

func chordProgression(id string) vault.ChordProgressionRef {
	cp := vault.ChordProgressionRef{
		ID:        id,
		Name:      "Pop loop",
		Numerals:  []string{"I", "V", "vi", "IV"},
		Durations: []float64{4, 4, 4, 4},
		UpdatedAt: bundleBase,
	}
	cp.ContentHash = cp.ComputeContentHash()
	return cp
}

func TestBundleRoundTrip(t *testing.T) {
	// Export two lane templates and a chord progression from one vault,
	// import them into a fresh one, then re-import to check dedup.
	ctx := context.Background()
	passphrase := []byte("bundle pass")

	source := newBundleAdapter(t)
	meta := vault.NewVaultMeta("device-a")
	meta.LaneTemplates = []vault.LaneTemplateRef{
		laneTemplate("lt-1", "Arp up"),
		laneTemplate("lt-2", "Arp down"),
	}
	meta.ChordProgressions = []vault.ChordProgressionRef{chordProgression("cp-1")}
	putTestMeta(t, source, meta)

	b, err := Export(ctx, source, passphrase, Options{})
	require.NoError(t, err)
	assert.Equal(t, Version, b.Version)
	assert.Equal(t, "device-a", b.DeviceID)
	require.NotNil(t, b.MetadataEnvelope)

	target := newBundleAdapter(t)
	result, err := Import(ctx, target, b, passphrase)
	require.NoError(t, err)
	require.True(t, result.Success, "import failed: %v", result.Errors)
	assert.Equal(t, 2, result.Imported[vault.CollectionLaneTemplates])
	assert.Equal(t, 1, result.Imported[vault.CollectionChordProgressions])
	assert.Zero(t, result.Skipped.Duplicates)
	assert.Zero(t, result.Skipped.Invalid)

	// A second import of the same bundle skips everything as duplicates.
	again, err := Import(ctx, target, b, passphrase)
	require.NoError(t, err)
	require.True(t, again.Success)
	assert.Empty(t, again.Imported)
	assert.Equal(t, 3, again.Skipped.Duplicates)
}

func TestBundleRoundTripWithBlob(t *testing.T) {
	ctx := context.Background()
	passphrase := []byte("bundle pass")

	source := newBundleAdapter(t)
	loopBytes := []byte("fake flac bytes")
	ref, err := source.PutBlob(ctx, loopBytes, "audio/flac")
	require.NoError(t, err)

	meta := vault.NewVaultMeta("device-a")
	meta.AudioLoops = []vault.AudioLoopRef{{
		ID: "loop-1", BlobID: ref.ID, BlobHash: ref.ID, MimeType: "audio/flac", UpdatedAt: bundleBase,
	}}
	putTestMeta(t, source, meta)

	b, err := Export(ctx, source, passphrase, Options{})
	require.NoError(t, err)
	require.Len(t, b.Blobs, 1)
	require.Contains(t, b.Manifest.Blobs, ref.ID)

	target := newBundleAdapter(t)
	result, err := Import(ctx, target, b, passphrase)
	require.NoError(t, err)
	require.True(t, result.Success, "import failed: %v", result.Errors)
	assert.Equal(t, 1, result.Imported["blobs"])
	assert.Equal(t, 1, result.Imported[vault.CollectionAudioLoops])

	got, err := target.GetBlob(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, loopBytes, got)
}

func TestExportCollectionAndIDFilter(t *testing.T) {
	ctx := context.Background()
	passphrase := []byte("pw")

	source := newBundleAdapter(t)
	meta := vault.NewVaultMeta("device-a")
	meta.Projects = []vault.Project{{ID: "p1", Name: "Keep out", UpdatedAt: bundleBase}}
	meta.LaneTemplates = []vault.LaneTemplateRef{
		laneTemplate("lt-1", "Wanted"),
		laneTemplate("lt-2", "Unwanted"),
	}
	putTestMeta(t, source, meta)

	b, err := Export(ctx, source, passphrase, Options{
		Collections: []string{vault.CollectionLaneTemplates},
		IDs:         []string{"lt-1"},
	})
	require.NoError(t, err)

	metaJSON, err := crypto.Decrypt(b.MetadataEnvelope, passphrase)
	require.NoError(t, err)
	var exported vault.VaultMeta
	require.NoError(t, json.Unmarshal(metaJSON, &exported))

	assert.Empty(t, exported.Projects)
	require.Len(t, exported.LaneTemplates, 1)
	assert.Equal(t, "lt-1", exported.LaneTemplates[0].ID)
}

func TestExportExcludesDisallowedMimeType(t *testing.T) {
	ctx := context.Background()
	source := newBundleAdapter(t)

	ref, err := source.PutBlob(ctx, []byte("not audio"), "video/mp4")
	require.NoError(t, err)

	meta := vault.NewVaultMeta("device-a")
	meta.AudioLoops = []vault.AudioLoopRef{{
		ID: "loop-1", BlobID: ref.ID, BlobHash: ref.ID, MimeType: "video/mp4", UpdatedAt: bundleBase,
	}}
	putTestMeta(t, source, meta)

	b, err := Export(ctx, source, []byte("pw"), Options{})
	require.NoError(t, err)

	// Metadata still travels; the blob itself stays behind.
	assert.Empty(t, b.Blobs)
	assert.Empty(t, b.Manifest.Blobs)
}

func TestImportWrongPassphrase(t *testing.T) {
	ctx := context.Background()

	source := newBundleAdapter(t)
	meta := vault.NewVaultMeta("device-a")
	meta.LaneTemplates = []vault.LaneTemplateRef{laneTemplate("lt-1", "Arp")}
	putTestMeta(t, source, meta)

	b, err := Export(ctx, source, []byte("right"), Options{})
	require.NoError(t, err)

	target := newBundleAdapter(t)
	result, err := Import(ctx, target, b, []byte("wrong"))
	require.NoError(t, err, "a wrong passphrase is a failed result, not an error")

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Errors)
	assert.Empty(t, result.Imported)
	assert.Zero(t, result.Skipped.Duplicates)
	assert.Zero(t, result.Skipped.Invalid)

	// Nothing was written to the target vault.
	_, err = target.Get(ctx, storage.MetaKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestImportRejectsTamperedBlob(t *testing.T) {
	ctx := context.Background()
	passphrase := []byte("pw")

	source := newBundleAdapter(t)
	ref, err := source.PutBlob(ctx, []byte("original bytes"), "audio/wav")
	require.NoError(t, err)

	meta := vault.NewVaultMeta("device-a")
	meta.AudioLoops = []vault.AudioLoopRef{{
		ID: "loop-1", BlobID: ref.ID, BlobHash: ref.ID, MimeType: "audio/wav", UpdatedAt: bundleBase,
	}}
	putTestMeta(t, source, meta)

	b, err := Export(ctx, source, passphrase, Options{})
	require.NoError(t, err)
	b.Blobs[ref.ID] = base64.StdEncoding.EncodeToString([]byte("tampered bytes"))

	target := newBundleAdapter(t)
	result, err := Import(ctx, target, b, passphrase)
	require.NoError(t, err)

	require.True(t, result.Success)
	assert.Zero(t, result.Imported["blobs"])
	assert.Equal(t, 1, result.Skipped.Invalid)
	assert.NotEmpty(t, result.Errors)

	has, err := target.HasBlob(ctx, ref.ID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestValidate(t *testing.T) {
	source := newBundleAdapter(t)
	putTestMeta(t, source, vault.NewVaultMeta("device-a"))
	good, err := Export(context.Background(), source, []byte("pw"), Options{})
	require.NoError(t, err)

	t.Run("good bundle", func(t *testing.T) {
		report := Validate(good)
		assert.True(t, report.Valid)
		assert.Empty(t, report.Errors)
	})

	t.Run("nil bundle", func(t *testing.T) {
		report := Validate(nil)
		assert.False(t, report.Valid)
	})

	t.Run("future version", func(t *testing.T) {
		b := *good
		b.Version = 99
		report := Validate(&b)
		assert.False(t, report.Valid)
	})

	t.Run("missing envelope", func(t *testing.T) {
		b := *good
		b.MetadataEnvelope = nil
		report := Validate(&b)
		assert.False(t, report.Valid)
	})

	t.Run("missing manifest", func(t *testing.T) {
		b := *good
		b.Manifest = nil
		report := Validate(&b)
		assert.False(t, report.Valid)
	})

	t.Run("manifest blob without payload warns", func(t *testing.T) {
		b := *good
		b.Manifest = vault.NewManifest()
		b.Manifest.Blobs["deadbeef"] = vault.BlobEntry{ID: "deadbeef", Size: 4, MimeType: "audio/wav"}
		report := Validate(&b)
		assert.True(t, report.Valid, "a missing payload is a warning, not an error")
		assert.NotEmpty(t, report.Warnings)
	})
}

func TestBundleSizeCap(t *testing.T) {
	require.NoError(t, bundleSizeError(0))
	require.NoError(t, bundleSizeError(MaxBundleSize))

	err := bundleSizeError(MaxBundleSize + 1)
	require.Error(t, err)
	var sizeErr *storage.SizeLimitError
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, "bundle", sizeErr.What)
	assert.Equal(t, int64(MaxBundleSize+1), sizeErr.Size)
	assert.Equal(t, int64(MaxBundleSize), sizeErr.Limit)
}

func TestImportInvalidBundleFailsBeforeDecryption(t *testing.T) {
	target := newBundleAdapter(t)

	result, err := Import(context.Background(), target, &Bundle{Version: 99}, []byte("pw"))
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Errors)
	assert.Empty(t, result.Imported)
}
