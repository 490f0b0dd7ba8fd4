package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/groovekit/loopvault/internal/conflict"
	"github.com/groovekit/loopvault/internal/crypto"
	"github.com/groovekit/loopvault/internal/engine"
	"github.com/groovekit/loopvault/internal/storage"
)

// Sync merges the local vault with a folder-based remote vault. An empty
// remotePath falls back to the configured sync folder. The folder
// replica is sealed under the vault passphrase, so the passphrase is
// verified before any byte moves.
func Sync(ctx context.Context, remotePath string) {
	cfg, err := LoadConfig()
	if err != nil {
		HandleError(err)
	}
	if remotePath == "" {
		remotePath = cfg.RemotePath
	}
	if remotePath == "" {
		HandleError(errors.New("no sync folder configured; pass a path or set remotePath in the config"))
	}

	local, err := OpenVault(cfg)
	if err != nil {
		HandleError(err)
	}
	defer local.Close()
	if err := local.Init(ctx); err != nil {
		HandleError(err)
	}

	passphrase, err := GetPassphrase(cfg)
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(passphrase)

	if err := VerifyVaultPassphrase(ctx, local, passphrase); err != nil {
		HandleError(err)
	}

	remote, err := storage.OpenFolder(remotePath, passphrase)
	if err != nil {
		HandleError(err)
	}
	defer remote.Close()

	result := engine.New(local, remote, cfg.DeviceID).Sync(ctx)
	if !result.Success {
		fmt.Printf("Sync failed: %s\n", result.Error)
		if result.Uploaded > 0 || result.Downloaded > 0 {
			fmt.Printf("Partial transfer: %d uploaded, %d downloaded\n", result.Uploaded, result.Downloaded)
		}
		HandleError(errors.New(result.Error))
	}

	fmt.Printf("Synced with %s\n", remotePath)
	fmt.Printf("  Uploaded:   %d blobs\n", result.Uploaded)
	fmt.Printf("  Downloaded: %d blobs\n", result.Downloaded)

	if len(result.Conflicts) > 0 {
		fmt.Printf("\n%d conflict(s) detected:\n", len(result.Conflicts))
		for i := range result.Conflicts {
			rec := &result.Conflicts[i]
			fmt.Printf("  [%s] %s %s (%s vs %s)\n",
				shortConflictID(rec.ID), rec.EntityType, rec.EntityID,
				conflict.ShortDeviceID(rec.LocalDeviceID), conflict.ShortDeviceID(rec.RemoteDeviceID))
		}
		fmt.Println("\nLocal values were kept provisionally.")
		fmt.Println("Run 'loopvault conflicts' to review and 'loopvault resolve' to decide.")
	}
}

func shortConflictID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
