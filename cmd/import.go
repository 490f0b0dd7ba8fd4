package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/groovekit/loopvault/internal/bundle"
	"github.com/groovekit/loopvault/internal/crypto"
)

// Import merges a bundle file into the vault
func Import(ctx context.Context, bundlePath string) {
	cfg, err := LoadConfig()
	if err != nil {
		HandleError(err)
	}

	data, err := os.ReadFile(bundlePath)
	if err != nil {
		HandleError(err)
	}
	var b bundle.Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		HandleError(fmt.Errorf("%s is not a bundle file: %w", bundlePath, err))
	}

	// Reject structural garbage before asking for a passphrase
	report := bundle.Validate(&b)
	for _, warning := range report.Warnings {
		fmt.Printf("Warning: %s\n", warning)
	}
	if !report.Valid {
		for _, msg := range report.Errors {
			fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
		}
		os.Exit(1)
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

	result, err := bundle.Import(ctx, adapter, &b, passphrase)
	if err != nil {
		HandleError(err)
	}
	if !result.Success {
		for _, msg := range result.Errors {
			fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
		}
		os.Exit(1)
	}

	fmt.Printf("Imported bundle from %s\n", bundlePath)
	names := make([]string, 0, len(result.Imported))
	for name := range result.Imported {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-20s %d\n", name, result.Imported[name])
	}
	if result.Skipped.Duplicates > 0 {
		fmt.Printf("Skipped %d duplicate(s)\n", result.Skipped.Duplicates)
	}
	if result.Skipped.Invalid > 0 {
		fmt.Printf("Skipped %d invalid item(s)\n", result.Skipped.Invalid)
	}
}
