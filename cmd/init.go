package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/groovekit/loopvault/internal/crypto"
	"github.com/groovekit/loopvault/internal/storage"
	"github.com/groovekit/loopvault/internal/vault"
)

// Init creates the local vault and seals the passphrase check envelope
func Init(ctx context.Context) {
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

	// Refuse to re-init a vault that already has a check envelope
	if _, err := adapter.Get(ctx, checkKey); err == nil {
		HandleError(ErrAlreadyExists)
	} else if err != storage.ErrNotFound {
		HandleError(err)
	}

	passphrase, err := GetPassphraseForInit()
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(passphrase)

	env, err := crypto.EncryptWithIterations(checkPayload, passphrase, cfg.KDFIterations)
	if err != nil {
		HandleError(err)
	}
	envJSON, err := json.Marshal(env)
	if err != nil {
		HandleError(err)
	}
	if err := adapter.Set(ctx, checkKey, envJSON); err != nil {
		HandleError(err)
	}

	meta := vault.NewVaultMeta(cfg.DeviceID)
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		HandleError(err)
	}
	if err := adapter.Set(ctx, storage.MetaKey, metaJSON); err != nil {
		HandleError(err)
	}

	fmt.Printf("Initialized vault at %s\n", cfg.VaultPath)
	fmt.Printf("Device id: %s\n", cfg.DeviceID)
	fmt.Println("The passphrase is not stored anywhere - you must remember it.")
}
