package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/groovekit/loopvault/internal/crypto"
)

// EnvConfigPath overrides the default config file location.
const EnvConfigPath = "LOOPVAULT_CONFIG"

// Config is the persisted per-device configuration.
type Config struct {
	// DeviceID is a stable UUID identifying this device in sync
	// provenance and conflict records.
	DeviceID string `yaml:"deviceId"`

	// VaultPath is the local vault database location.
	VaultPath string `yaml:"vaultPath"`

	// RemotePath points at the remote vault (folder or bundle target).
	// Empty until the user configures a sync destination.
	RemotePath string `yaml:"remotePath,omitempty"`

	// KDFIterations is the PBKDF2 iteration count for new envelopes.
	KDFIterations int `yaml:"kdfIterations"`
}

// DefaultPath returns the config file location: $LOOPVAULT_CONFIG if
// set, otherwise <user config dir>/loopvault/config.yaml.
func DefaultPath() (string, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(dir, "loopvault", "config.yaml"), nil
}

// DefaultVaultPath returns the default local vault database location.
func DefaultVaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".loopvault", "vault.db"), nil
}

// LoadOrCreate reads the config at path, creating it with generated
// defaults on first run. Repeated calls return the same device id.
func LoadOrCreate(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		var cfg Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("malformed config %s: %w", path, err)
		}
		if cfg.DeviceID == "" {
			return nil, fmt.Errorf("config %s has no device id", path)
		}
		if cfg.KDFIterations <= 0 {
			cfg.KDFIterations = crypto.DefaultIters
		}
		return &cfg, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	vaultPath, err := DefaultVaultPath()
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		DeviceID:      uuid.NewString(),
		VaultPath:     vaultPath,
		KDFIterations: crypto.DefaultIters,
	}
	if err := Save(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config with owner-only permissions.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
