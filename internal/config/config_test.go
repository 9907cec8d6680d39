package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "willow.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api.followupboss.com/v1", cfg.FUB.BaseURL)
	assert.InDelta(t, 20.0, cfg.FUB.RateLimit, 0.001)
	assert.InDelta(t, 0.35, cfg.Scoring.FelloWeight, 0.001)
	assert.InDelta(t, 0.25, cfg.Scoring.CloudCMAWeight, 0.001)
	assert.InDelta(t, 0.25, cfg.Scoring.WillowWeight, 0.001)
	assert.InDelta(t, 0.15, cfg.Scoring.SierraWeight, 0.001)
	assert.Equal(t, 90, cfg.Scoring.CriticalAt)
	assert.Equal(t, 40, cfg.Scoring.WarmAt)
	assert.Equal(t, 24, cfg.Pipeline.PropertyCacheTTLHours)
	assert.Equal(t, 5, cfg.Pipeline.MaxConcurrentLeads)
}

func TestLoadFromYAML(t *testing.T) {
	chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/willow
log:
  level: debug
  format: console
server:
  port: 9090
scoring:
  hot_at: 55
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/willow", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 55, cfg.Scoring.HotAt)
	// Untouched keys keep defaults.
	assert.Equal(t, 80, cfg.Scoring.SuperHotAt)
}

func TestLoadFromEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("WILLOW_FUB_KEY", "env-key")
	t.Setenv("WILLOW_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.FUB.Key)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestRequireSecrets(t *testing.T) {
	cfg := &Config{}
	cfg.FUB.Key = "set"

	assert.NoError(t, cfg.RequireSecrets("fub"))

	err := cfg.RequireSecrets("fub", "cloudcma", "attom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WILLOW_CLOUDCMA_KEY")
	assert.Contains(t, err.Error(), "WILLOW_ATTOM_KEY")
	assert.NotContains(t, err.Error(), "WILLOW_FUB_KEY")

	assert.Error(t, cfg.RequireSecrets("nonsense"))
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "nope", Format: "json"}))
}
