package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	t.Setenv("BLOODBANK_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 10, cfg.Inventory.MinimumThreshold)
	assert.Equal(t, 8*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bloodbank.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
redis:
  addr: redis:6379
inventory:
  minimum_threshold: 12
log:
  level: debug
`), 0o600))

	t.Setenv("BLOODBANK_CONFIG", path)
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("SESSION_TTL", "30m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 12, cfg.Inventory.MinimumThreshold)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 30*time.Minute, cfg.Auth.SessionTTL)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("BLOODBANK_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Inventory.MinimumThreshold = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Auth.JWTSecret = ""
	assert.Error(t, cfg.Validate())

	assert.NoError(t, Default().Validate())
}
