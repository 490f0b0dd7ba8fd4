package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/groovekit/loopvault/internal/bundle"
	"github.com/groovekit/loopvault/internal/crypto"
)

// Export writes an encrypted bundle of the vault to a file
func Export(ctx context.Context, outPath string, collections, ids []string) {
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

	passphrase, err := GetPassphrase(cfg)
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(passphrase)

	if err := VerifyVaultPassphrase(ctx, adapter, passphrase); err != nil {
		HandleError(err)
	}

	opts := bundle.Options{Collections: collections, IDs: ids}
	b, err := bundle.Export(ctx, adapter, passphrase, opts)
	if err != nil {
		HandleError(err)
	}

	data, err := json.Marshal(b)
	if err != nil {
		HandleError(err)
	}
	if err := os.WriteFile(outPath, data, 0600); err != nil {
		HandleError(err)
	}

	fmt.Printf("Exported bundle to %s (%s, %d blob(s))\n",
		outPath, formatSize(int64(len(data))), len(b.Blobs))
}
