package cmd

import (
	"context"
	"fmt"
	"os"
)

// Compact compacts the vault database to reclaim unused space
func Compact(ctx context.Context) {
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

	info, err := os.Stat(cfg.VaultPath)
	if err != nil {
		HandleError(err)
	}
	sizeBefore := info.Size()

	if err := adapter.Compact(); err != nil {
		HandleError(err)
	}

	info, err = os.Stat(cfg.VaultPath)
	if err != nil {
		HandleError(err)
	}
	sizeAfter := info.Size()

	fmt.Printf("Compacted: %s -> %s\n", formatSize(sizeBefore), formatSize(sizeAfter))
}
