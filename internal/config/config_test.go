package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "bure.db", cfg.Store.SQLitePath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 42.3601, cfg.Map.CenterLat, 0.001)
	assert.InDelta(t, -71.0589, cfg.Map.CenterLon, 0.001)
	assert.Equal(t, 12, cfg.Map.Zoom)
	assert.Equal(t, "https://tile.openstreetmap.org/{z}/{x}/{y}.png", cfg.Map.TileURL)
	assert.Equal(t, 2048, cfg.Map.TileCacheSize)
	assert.Equal(t, 60, cfg.Map.TileCacheTTL)
	assert.Equal(t, 30, cfg.Picker.SessionTTLMins)
	assert.Equal(t, "boston-ma", cfg.Scrape.CitySlug)
	assert.Equal(t, 2, cfg.Scrape.MaxPages)
	assert.Equal(t, 3, cfg.Scrape.Concurrency)
	assert.InDelta(t, 2.0, cfg.Scrape.RequestsPerSec, 0.001)
	assert.Equal(t, 100, cfg.Estimate.EvalSplits)
	assert.Equal(t, "NAME", cfg.Boundary.CodeField)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/bure
log:
  level: debug
  format: console
server:
  port: 9090
scrape:
  max_pages: 5
  sources:
    - district: fenway
      search_url: https://www.apartments.com/fenway-boston-ma/
    - district: back_bay
      search_url: https://www.apartments.com/back-bay-boston-ma/
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Scrape.MaxPages)
	require.Len(t, cfg.Scrape.Sources, 2)
	assert.Equal(t, "fenway", cfg.Scrape.Sources[0].District)
	assert.Equal(t, "https://www.apartments.com/back-bay-boston-ma/", cfg.Scrape.Sources[1].SearchURL)
	// Defaults still apply for unset values
	assert.Equal(t, 12, cfg.Map.Zoom)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("BURE_STORE_DRIVER", "postgres")
	t.Setenv("BURE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("BURE_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults mirrors the Load defaults for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.SQLitePath = "bure.db"
	cfg.Server.Port = 8080
	cfg.Map.Zoom = 12
	cfg.Picker.SessionTTLMins = 30
	cfg.Scrape.MaxPages = 2
	cfg.Scrape.Concurrency = 3
	cfg.Estimate.EvalSplits = 100
	return cfg
}

func TestValidateServe(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateStoreDriver(t *testing.T) {
	cfg := validDefaults()

	cfg.Store.Driver = "postgres"
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/bure"
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Store.Driver = "oracle"
	err = cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
}

func TestValidateScrape(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("scrape")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "scrape.sources must not be empty")

	cfg.Scrape.Sources = []ScrapeSource{{District: "fenway", SearchURL: "https://example.com"}}
	assert.NoError(t, cfg.Validate("scrape"))

	cfg.Scrape.Concurrency = 17
	err = cfg.Validate("scrape")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "scrape.concurrency must be between 1 and 16")
}

func TestValidateTrain(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("train"))

	cfg.Estimate.EvalSplits = 0
	err := cfg.Validate("train")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "estimate.eval_splits must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
