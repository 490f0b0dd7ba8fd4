package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/groovekit/loopvault/internal/conflict"
	"github.com/groovekit/loopvault/internal/storage"
)

// Resolve commits a conflict resolution. The id may be a unique prefix
// of a conflict id.
func Resolve(ctx context.Context, id, choice string) {
	cfg, err := LoadConfig()
	if err != nil {
		HandleError(err)
	}

	adapter, err := OpenVault(cfg)
	if err != nil {
		HandleError(err)
	}
	defer adapter.Close()
	if err := adapter.Init(ctx); err != nil {
		HandleError(err)
	}

	store := conflict.NewStore(adapter)

	fullID, err := expandConflictID(ctx, store, id)
	if err != nil {
		HandleError(err)
	}

	rec, err := store.Commit(ctx, fullID, choice, cfg.DeviceID)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("Resolved %s %s: kept the %s value\n", rec.EntityType, rec.EntityID, rec.Resolution.Choice)
}

// expandConflictID resolves a conflict id prefix against the stored
// records.
func expandConflictID(ctx context.Context, store *conflict.Store, id string) (string, error) {
	if _, err := store.Get(ctx, id); err == nil {
		return id, nil
	} else if err != storage.ErrNotFound {
		return "", err
	}

	records, err := store.List(ctx, false)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, rec := range records {
		if strings.HasPrefix(rec.ID, id) {
			matches = append(matches, rec.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no conflict matches %q", id)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("conflict id %q is ambiguous (%d matches)", id, len(matches))
}
