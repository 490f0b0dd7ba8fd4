package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/groovekit/loopvault/internal/conflict"
	"github.com/groovekit/loopvault/internal/vault"
)

// Status shows the current state of the vault. Works without a
// passphrase: only entity counts and blob sizes are shown, never
// envelope contents.
func Status(ctx context.Context) {
	cfg, err := LoadConfig()
	if err != nil {
		HandleError(err)
	}

	if _, err := os.Stat(cfg.VaultPath); os.IsNotExist(err) {
		fmt.Println("No vault found")
		fmt.Println("Run 'loopvault init' to create one")
		return
	}

	adapter, err := OpenVault(cfg)
	if err != nil {
		HandleError(err)
	}
	defer adapter.Close()
	if err := adapter.Init(ctx); err != nil {
		HandleError(err)
	}

	meta, err := loadVaultMeta(ctx, adapter, cfg.DeviceID)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("Vault: %s\n", cfg.VaultPath)
	fmt.Printf("Device id: %s\n", cfg.DeviceID)
	if cfg.RemotePath != "" {
		fmt.Printf("Sync folder: %s\n", cfg.RemotePath)
	}
	fmt.Println()

	fmt.Println("Collections:")
	printCount(vault.CollectionProjects, len(meta.Projects))
	printCount(vault.CollectionReferenceLibraries, len(meta.ReferenceLibraries))
	printCount(vault.CollectionKnowledgeEntries, len(meta.KnowledgeEntries))
	printCount(vault.CollectionLaneTemplates, len(meta.LaneTemplates))
	printCount(vault.CollectionChordProgressions, len(meta.ChordProgressions))
	printCount(vault.CollectionAudioLoops, len(meta.AudioLoops))
	printCount(vault.CollectionProjectClips, len(meta.ProjectClips))

	blobs, err := adapter.ListBlobs(ctx)
	if err != nil {
		HandleError(err)
	}
	var totalSize int64
	for _, b := range blobs {
		totalSize += b.Size
	}
	fmt.Printf("\nBlobs: %d (%s)\n", len(blobs), formatSize(totalSize))

	if !meta.UpdatedAt.IsZero() {
		fmt.Printf("Last updated: %s\n", meta.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	unresolved, err := conflict.NewStore(adapter).List(ctx, true)
	if err != nil {
		HandleError(err)
	}
	if len(unresolved) > 0 {
		fmt.Printf("\nUnresolved conflicts: %d\n", len(unresolved))
		fmt.Println("Run 'loopvault conflicts' to inspect them")
	}
}

func printCount(name string, count int) {
	if count == 0 {
		return
	}
	fmt.Printf("  %-20s %d\n", name, count)
}
