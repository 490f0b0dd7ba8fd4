package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groovekit/loopvault/internal/crypto"
)

func TestLoadOrCreateFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := LoadOrCreate(path)
	require.NoError(t, err)

	_, err = uuid.Parse(cfg.DeviceID)
	assert.NoError(t, err, "device id must be a UUID")
	assert.NotEmpty(t, cfg.VaultPath)
	assert.Equal(t, crypto.DefaultIters, cfg.KDFIterations)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoadOrCreateStableDeviceID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	first, err := LoadOrCreate(path)
	require.NoError(t, err)
	second, err := LoadOrCreate(path)
	require.NoError(t, err)

	assert.Equal(t, first.DeviceID, second.DeviceID, "device id must survive reloads")
}

func TestLoadOrCreateExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "deviceId: 6e1f0f57-1fd1-4f3e-a9de-111122223333\nvaultPath: /tmp/v.db\nremotePath: /mnt/share/vault\nkdfIterations: 250000\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.Equal(t, "6e1f0f57-1fd1-4f3e-a9de-111122223333", cfg.DeviceID)
	assert.Equal(t, "/mnt/share/vault", cfg.RemotePath)
	assert.Equal(t, 250000, cfg.KDFIterations)
}

func TestLoadOrCreateDefaultsMissingIterations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "deviceId: 6e1f0f57-1fd1-4f3e-a9de-111122223333\nvaultPath: /tmp/v.db\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.Equal(t, crypto.DefaultIters, cfg.KDFIterations)
}

func TestLoadOrCreateRejectsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\tnot yaml"), 0600))

	_, err := LoadOrCreate(path)
	assert.Error(t, err)
}

func TestDefaultPathEnvOverride(t *testing.T) {
	t.Setenv(EnvConfigPath, "/custom/config.yaml")
	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, "/custom/config.yaml", path)
}
