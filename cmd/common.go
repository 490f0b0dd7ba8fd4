package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/term"

	"github.com/groovekit/loopvault/internal/config"
	"github.com/groovekit/loopvault/internal/crypto"
	"github.com/groovekit/loopvault/internal/keyring"
	"github.com/groovekit/loopvault/internal/storage"
	"github.com/groovekit/loopvault/internal/vault"
)

// EnvPassphrase supplies the vault passphrase non-interactively.
const EnvPassphrase = "LOOPVAULT_PASSPHRASE"

// checkKey holds the passphrase verification envelope in the kv
// namespace.
const checkKey = "vault/check"

// checkPayload is the known plaintext sealed at init time.
var checkPayload = []byte("loopvault passphrase check")

// Sentinel errors surfaced to the user with actionable hints.
var (
	ErrNotInitialized  = errors.New("vault not initialized")
	ErrAlreadyExists   = errors.New("vault already initialized")
	ErrWrongPassphrase = errors.New("wrong passphrase")
)

// LoadConfig loads (or creates on first run) the device configuration.
func LoadConfig() (*config.Config, error) {
	path, err := config.DefaultPath()
	if err != nil {
		return nil, err
	}
	return config.LoadOrCreate(path)
}

// OpenVault opens the local vault for a loaded config.
func OpenVault(cfg *config.Config) (*storage.LocalAdapter, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.VaultPath), 0700); err != nil {
		return nil, fmt.Errorf("create vault directory: %w", err)
	}
	return storage.OpenLocal(cfg.VaultPath)
}

// ReadPassword reads a passphrase from the terminal without echo
func ReadPassword(prompt string) ([]byte, error) {
	fmt.Print(prompt)
	passphrase, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // New line after passphrase
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}
	return passphrase, nil
}

// ReadPasswordConfirm reads a passphrase twice and ensures they match
func ReadPasswordConfirm() ([]byte, error) {
	first, err := ReadPassword("Enter passphrase: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(first)

	second, err := ReadPassword("Confirm passphrase: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(second)

	if !crypto.ConstantTimeCompare(first, second) {
		return nil, fmt.Errorf("passphrases do not match")
	}

	result := make([]byte, len(first))
	copy(result, first)
	return result, nil
}

// passphraseFromEnv reads the passphrase from the environment, returning
// a copy safe to clear.
func passphraseFromEnv() []byte {
	passphrase := os.Getenv(EnvPassphrase)
	if passphrase == "" {
		return nil
	}
	result := make([]byte, len(passphrase))
	copy(result, passphrase)
	return result
}

// GetPassphrase resolves the vault passphrase: environment variable,
// then OS keyring, then an interactive prompt. The caller clears the
// returned bytes.
func GetPassphrase(cfg *config.Config) ([]byte, error) {
	if passphrase := passphraseFromEnv(); passphrase != nil {
		return passphrase, nil
	}
	if stored, err := keyring.GetPassphrase(cfg.DeviceID); err == nil {
		return []byte(stored), nil
	}
	return ReadPassword("Enter passphrase: ")
}

// GetPassphraseForInit resolves the initial passphrase: environment
// variable, or an interactive prompt with confirmation.
func GetPassphraseForInit() ([]byte, error) {
	if passphrase := passphraseFromEnv(); passphrase != nil {
		return passphrase, nil
	}
	return ReadPasswordConfirm()
}

// loadCheckEnvelope reads the verification envelope stored at init.
func loadCheckEnvelope(ctx context.Context, adapter storage.Adapter) (*crypto.Envelope, error) {
	data, err := adapter.Get(ctx, checkKey)
	if err == storage.ErrNotFound {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, err
	}
	var env crypto.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("corrupt passphrase check envelope: %w", err)
	}
	return &env, nil
}

// VerifyVaultPassphrase checks a passphrase against the verification
// envelope.
func VerifyVaultPassphrase(ctx context.Context, adapter storage.Adapter, passphrase []byte) error {
	env, err := loadCheckEnvelope(ctx, adapter)
	if err != nil {
		return err
	}
	if !crypto.VerifyPassphrase(env, passphrase) {
		return ErrWrongPassphrase
	}
	return nil
}

// loadVaultMeta reads the vault document, returning an empty one when
// the vault is fresh.
func loadVaultMeta(ctx context.Context, adapter storage.Adapter, deviceID string) (*vault.VaultMeta, error) {
	data, err := adapter.Get(ctx, storage.MetaKey)
	if err == storage.ErrNotFound {
		return vault.NewVaultMeta(deviceID), nil
	}
	if err != nil {
		return nil, err
	}
	var meta vault.VaultMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("corrupt vault metadata: %w", err)
	}
	return &meta, nil
}

// HandleError prints a user-facing message for common errors and exits
func HandleError(err error) {
	switch {
	case errors.Is(err, ErrNotInitialized):
		fmt.Fprintf(os.Stderr, "Error: vault not initialized\n")
		fmt.Fprintf(os.Stderr, "Run 'loopvault init' first\n")
	case errors.Is(err, ErrAlreadyExists):
		fmt.Fprintf(os.Stderr, "Error: vault already initialized\n")
		fmt.Fprintf(os.Stderr, "Use 'loopvault status' to see current state\n")
	case errors.Is(err, ErrWrongPassphrase):
		fmt.Fprintf(os.Stderr, "Error: wrong passphrase\n")
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	os.Exit(1)
}

// formatSize formats a byte count in human-readable form
func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
