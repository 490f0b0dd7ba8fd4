package conflict

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/groovekit/loopvault/internal/storage"
	"github.com/groovekit/loopvault/internal/vault"
)

// Store persists conflict records in an adapter's key-value namespace,
// one record per key under the conflict prefix.
type Store struct {
	adapter storage.Adapter
}

// NewStore creates a conflict store over an adapter.
func NewStore(adapter storage.Adapter) *Store {
	return &Store{adapter: adapter}
}

func conflictKey(id string) string {
	return storage.ConflictKeyPrefix + id
}

// Save writes a record, overwriting any previous state for the same id.
func (s *Store) Save(ctx context.Context, rec *vault.ConflictRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal conflict %s: %w", rec.ID, err)
	}
	return s.adapter.Set(ctx, conflictKey(rec.ID), data)
}

// Get loads a record by id. Returns storage.ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, id string) (*vault.ConflictRecord, error) {
	data, err := s.adapter.Get(ctx, conflictKey(id))
	if err != nil {
		return nil, err
	}
	var rec vault.ConflictRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt conflict record %s: %w", id, err)
	}
	return &rec, nil
}

// List returns all records, oldest detection first. Pass unresolvedOnly
// to hide records that already carry a resolution.
func (s *Store) List(ctx context.Context, unresolvedOnly bool) ([]*vault.ConflictRecord, error) {
	keys, err := s.adapter.Keys(ctx, storage.ConflictKeyPrefix)
	if err != nil {
		return nil, err
	}
	records := make([]*vault.ConflictRecord, 0, len(keys))
	for _, key := range keys {
		data, err := s.adapter.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		var rec vault.ConflictRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("corrupt conflict record at %s: %w", key, err)
		}
		if unresolvedOnly && rec.Resolved() {
			continue
		}
		records = append(records, &rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].DetectedAt.Before(records[j].DetectedAt)
	})
	return records, nil
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.adapter.Delete(ctx, conflictKey(id))
}

// Commit resolves a conflict end to end: validates and applies the
// choice, writes the winning value into the vault document, and
// persists the resolved record. The record is untouched if the vault
// update fails.
func (s *Store) Commit(ctx context.Context, id, choice, deviceID string) (*vault.ConflictRecord, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	value, err := ApplyResolution(rec, choice, deviceID)
	if err != nil {
		return nil, err
	}

	metaJSON, err := s.adapter.Get(ctx, storage.MetaKey)
	if err != nil {
		return nil, err
	}
	var meta vault.VaultMeta
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, fmt.Errorf("corrupt vault metadata: %w", err)
	}
	if err := meta.ReplaceEntity(rec.EntityType, rec.EntityID, value); err != nil {
		return nil, err
	}
	meta.UpdatedAt = time.Now()

	updated, err := json.Marshal(&meta)
	if err != nil {
		return nil, err
	}
	if err := s.adapter.Set(ctx, storage.MetaKey, updated); err != nil {
		return nil, err
	}

	if err := s.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
