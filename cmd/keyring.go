package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/groovekit/loopvault/internal/crypto"
	"github.com/groovekit/loopvault/internal/keyring"
)

// KeyringSave saves the passphrase to the OS keyring
func KeyringSave(ctx context.Context) {
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

	passphrase, err := ReadPassword("Enter passphrase: ")
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(passphrase)

	// Only a verified passphrase goes into the keyring
	if err := VerifyVaultPassphrase(ctx, adapter, passphrase); err != nil {
		HandleError(err)
	}

	if err := keyring.SavePassphrase(cfg.DeviceID, string(passphrase)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to save to keyring: %s\n", err)
		os.Exit(1)
	}

	fmt.Println("Passphrase saved to keyring")
}

// KeyringForget removes the passphrase from the OS keyring
func KeyringForget() {
	cfg, err := LoadConfig()
	if err != nil {
		HandleError(err)
	}

	if err := keyring.DeletePassphrase(cfg.DeviceID); err != nil {
		fmt.Println("No passphrase stored in keyring")
		return
	}
	fmt.Println("Passphrase removed from keyring")
}

// KeyringStatus checks if a passphrase is stored in the keyring
func KeyringStatus() {
	cfg, err := LoadConfig()
	if err != nil {
		HandleError(err)
	}

	if keyring.HasPassphrase(cfg.DeviceID) {
		fmt.Println("Passphrase: stored in keyring")
	} else {
		fmt.Println("Passphrase: not stored")
	}
}
