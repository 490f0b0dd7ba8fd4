package engine

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/groovekit/loopvault/internal/vault"
)

// TieWindow is the interval within which two differing updates are
// treated as concurrent rather than orderable. It absorbs clock skew
// between devices while still catching genuinely concurrent edits.
const TieWindow = time.Second

// mergeContext carries the per-sync inputs every collection merge needs.
type mergeContext struct {
	localDeviceID  string
	remoteDeviceID string
	now            time.Time
}

// mergeEntityList merges a remote entity list into a local one by id.
//
// Rules, per remote entity:
//   - absent locally: add
//   - within the tie window and serialized contents differ: record a
//     conflict and provisionally keep the local value
//   - remote strictly newer outside the window: remote replaces local
//   - otherwise: keep local
//
// Local entities keep their relative order; new remote entities append
// in remote order, so the result is deterministic.
func mergeEntityList[T vault.Entity](mc mergeContext, entityType string, local, remote []T) ([]T, []vault.ConflictRecord) {
	merged := make([]T, len(local))
	copy(merged, local)

	index := make(map[string]int, len(local))
	for i, e := range local {
		index[e.EntityID()] = i
	}

	var conflicts []vault.ConflictRecord
	for _, r := range remote {
		i, ok := index[r.EntityID()]
		if !ok {
			index[r.EntityID()] = len(merged)
			merged = append(merged, r)
			continue
		}

		l := merged[i]
		delta := r.ModifiedAt().Sub(l.ModifiedAt())
		if delta < 0 {
			delta = -delta
		}

		if delta < TieWindow {
			if !sameSerialized(l, r) {
				conflicts = append(conflicts, newConflict(mc, entityType, l, r))
			}
			continue // Keep local provisionally
		}

		if r.ModifiedAt().After(l.ModifiedAt()) {
			merged[i] = r
		}
	}
	return merged, conflicts
}

// mergeSettings merges the whole settings object by last-write-wins on
// its own timestamp. Settings never produce conflicts.
func mergeSettings(local, remote *vault.Settings) *vault.Settings {
	if local == nil {
		return remote
	}
	if remote == nil {
		return local
	}
	if remote.UpdatedAt.After(local.UpdatedAt) {
		return remote
	}
	return local
}

func sameSerialized(a, b any) bool {
	aj, err1 := json.Marshal(a)
	bj, err2 := json.Marshal(b)
	if err1 != nil || err2 != nil {
		return false
	}
	return bytes.Equal(aj, bj)
}

func newConflict[T vault.Entity](mc mergeContext, entityType string, local, remote T) vault.ConflictRecord {
	localJSON, _ := json.Marshal(local)
	remoteJSON, _ := json.Marshal(remote)
	return vault.ConflictRecord{
		ID:              uuid.NewString(),
		EntityType:      entityType,
		EntityID:        local.EntityID(),
		LocalValue:      localJSON,
		RemoteValue:     remoteJSON,
		LocalDeviceID:   mc.localDeviceID,
		RemoteDeviceID:  mc.remoteDeviceID,
		LocalUpdatedAt:  local.ModifiedAt(),
		RemoteUpdatedAt: remote.ModifiedAt(),
		DetectedAt:      mc.now,
	}
}
