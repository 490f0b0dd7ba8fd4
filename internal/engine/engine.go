package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/groovekit/loopvault/internal/conflict"
	"github.com/groovekit/loopvault/internal/storage"
	"github.com/groovekit/loopvault/internal/vault"
)

// blobCopyConcurrency bounds parallel blob transfers within one pass.
const blobCopyConcurrency = 4

// SyncResult reports the outcome of one sync pass. Failures are
// captured here rather than returned as errors, since callers typically
// drive a status indicator.
type SyncResult struct {
	Success    bool                   `json:"success"`
	Timestamp  time.Time              `json:"timestamp"`
	Uploaded   int                    `json:"uploaded"`
	Downloaded int                    `json:"downloaded"`
	Conflicts  []vault.ConflictRecord `json:"conflicts,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// Engine reconciles a local and a remote adapter. The device identity is
// injected at construction, never read from global state.
type Engine struct {
	local    storage.Adapter
	remote   storage.Adapter
	deviceID string
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates a sync engine for an adapter pair.
func New(local, remote storage.Adapter, deviceID string, opts ...Option) *Engine {
	e := &Engine{
		local:    local,
		remote:   remote,
		deviceID: deviceID,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sync runs one merge pass: load both VaultMeta documents, merge every
// collection, transfer missing blobs both ways, persist the identical
// merged document to both sides, and record conflicts on the local
// adapter. Partial progress is intentionally preserved on failure, not
// rolled back.
//
// Two concurrent Sync calls against the same adapter pair must be
// externally serialized.
func (e *Engine) Sync(ctx context.Context) *SyncResult {
	result := &SyncResult{Timestamp: e.now()}

	fail := func(err error) *SyncResult {
		result.Error = err.Error()
		return result
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if err := e.ensureReady(ctx, e.local); err != nil {
		return fail(fmt.Errorf("local adapter: %w", err))
	}
	if err := e.ensureReady(ctx, e.remote); err != nil {
		return fail(fmt.Errorf("remote adapter: %w", err))
	}

	localMeta, err := loadMeta(ctx, e.local, e.deviceID)
	if err != nil {
		return fail(fmt.Errorf("load local metadata: %w", err))
	}
	remoteMeta, err := loadMeta(ctx, e.remote, e.deviceID)
	if err != nil {
		return fail(fmt.Errorf("load remote metadata: %w", err))
	}

	merged, conflicts := e.mergeMeta(localMeta, remoteMeta)
	result.Conflicts = conflicts

	// Blob transfer may partially fail without losing the pass; the
	// metadata merge result stands either way and missing blobs are
	// retried next pass.
	uploaded, downloaded, blobErr := e.transferBlobs(ctx)
	result.Uploaded = uploaded
	result.Downloaded = downloaded
	if blobErr != nil {
		return fail(fmt.Errorf("blob transfer: %w", blobErr))
	}

	merged.DeviceID = e.deviceID
	merged.UpdatedAt = e.now()
	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return fail(fmt.Errorf("marshal merged metadata: %w", err))
	}
	if err := e.local.Set(ctx, storage.MetaKey, mergedJSON); err != nil {
		return fail(fmt.Errorf("persist local metadata: %w", err))
	}
	if err := e.remote.Set(ctx, storage.MetaKey, mergedJSON); err != nil {
		return fail(fmt.Errorf("persist remote metadata: %w", err))
	}

	if err := e.recordConflicts(ctx, conflicts); err != nil {
		return fail(fmt.Errorf("record conflicts: %w", err))
	}

	result.Success = true
	return result
}

func (e *Engine) ensureReady(ctx context.Context, adapter storage.Adapter) error {
	if adapter.IsReady() {
		return nil
	}
	return adapter.Init(ctx)
}

// loadMeta reads a side's VaultMeta; an absent document is treated as an
// empty vault.
func loadMeta(ctx context.Context, adapter storage.Adapter, deviceID string) (*vault.VaultMeta, error) {
	data, err := adapter.Get(ctx, storage.MetaKey)
	if err == storage.ErrNotFound {
		return vault.NewVaultMeta(deviceID), nil
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

func (e *Engine) mergeMeta(local, remote *vault.VaultMeta) (*vault.VaultMeta, []vault.ConflictRecord) {
	mc := mergeContext{
		localDeviceID:  local.DeviceID,
		remoteDeviceID: remote.DeviceID,
		now:            e.now(),
	}

	merged := &vault.VaultMeta{SchemaVersion: vault.SchemaVersion}
	var conflicts []vault.ConflictRecord

	collect := func(c []vault.ConflictRecord) {
		conflicts = append(conflicts, c...)
	}

	var c []vault.ConflictRecord
	merged.Projects, c = mergeEntityList(mc, vault.CollectionProjects, local.Projects, remote.Projects)
	collect(c)
	merged.ReferenceLibraries, c = mergeEntityList(mc, vault.CollectionReferenceLibraries, local.ReferenceLibraries, remote.ReferenceLibraries)
	collect(c)
	merged.KnowledgeEntries, c = mergeEntityList(mc, vault.CollectionKnowledgeEntries, local.KnowledgeEntries, remote.KnowledgeEntries)
	collect(c)
	merged.LaneTemplates, c = mergeEntityList(mc, vault.CollectionLaneTemplates, local.LaneTemplates, remote.LaneTemplates)
	collect(c)
	merged.ChordProgressions, c = mergeEntityList(mc, vault.CollectionChordProgressions, local.ChordProgressions, remote.ChordProgressions)
	collect(c)
	merged.AudioLoops, c = mergeEntityList(mc, vault.CollectionAudioLoops, local.AudioLoops, remote.AudioLoops)
	collect(c)
	merged.ProjectClips, c = mergeEntityList(mc, vault.CollectionProjectClips, local.ProjectClips, remote.ProjectClips)
	collect(c)

	merged.Settings = mergeSettings(local.Settings, remote.Settings)

	return merged, conflicts
}

// transferBlobs copies blobs present on exactly one side to the other.
// Copies run in parallel per blob; the metadata merge has already
// completed serially by the time this runs.
func (e *Engine) transferBlobs(ctx context.Context) (uploaded, downloaded int, err error) {
	localBlobs, err := e.local.ListBlobs(ctx)
	if err != nil {
		return 0, 0, err
	}
	remoteBlobs, err := e.remote.ListBlobs(ctx)
	if err != nil {
		return 0, 0, err
	}

	localIDs := blobIDSet(localBlobs)
	remoteIDs := blobIDSet(remoteBlobs)

	var up, down atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(blobCopyConcurrency)

	for _, entry := range localBlobs {
		if remoteIDs[entry.ID] {
			continue
		}
		g.Go(func() error {
			if err := copyBlob(gctx, e.local, e.remote, entry); err != nil {
				return err
			}
			up.Add(1)
			return nil
		})
	}
	for _, entry := range remoteBlobs {
		if localIDs[entry.ID] {
			continue
		}
		g.Go(func() error {
			if err := copyBlob(gctx, e.remote, e.local, entry); err != nil {
				return err
			}
			down.Add(1)
			return nil
		})
	}

	err = g.Wait()
	return int(up.Load()), int(down.Load()), err
}

func copyBlob(ctx context.Context, src, dst storage.Adapter, entry vault.BlobEntry) error {
	data, err := src.GetBlob(ctx, entry.ID)
	if err != nil {
		return fmt.Errorf("read blob %s: %w", entry.ID, err)
	}
	ref, err := dst.PutBlob(ctx, data, entry.MimeType)
	if err != nil {
		return fmt.Errorf("write blob %s: %w", entry.ID, err)
	}
	if ref.ID != entry.ID {
		return fmt.Errorf("blob %s stored under mismatched id %s", entry.ID, ref.ID)
	}
	return nil
}

func blobIDSet(entries []vault.BlobEntry) map[string]bool {
	set := make(map[string]bool, len(entries))
	for _, e := range entries {
		set[e.ID] = true
	}
	return set
}

// recordConflicts persists conflict records to the local adapter so the
// operator's conflict queue survives the process.
func (e *Engine) recordConflicts(ctx context.Context, conflicts []vault.ConflictRecord) error {
	store := conflict.NewStore(e.local)
	for i := range conflicts {
		if err := store.Save(ctx, &conflicts[i]); err != nil {
			return err
		}
	}
	return nil
}
