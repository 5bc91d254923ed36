package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "tempscore.db", cfg.Store.Path)
	assert.Equal(t, "csv", cfg.Provider.Source)
	assert.False(t, cfg.Registry.Enabled)
	assert.Equal(t, []string{"short", "mid", "long"}, cfg.Score.TimeFrames)
	assert.Equal(t, []string{"s1s2", "s3", "s1s2s3"}, cfg.Score.Scopes)
	assert.Equal(t, "WATS", cfg.Score.Method)
	assert.Equal(t, 4, cfg.Score.ModelVariant)
	assert.InDelta(t, 3.2, cfg.Score.FallbackScore, 0.001)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/tempscore
provider:
  source: xlsx
  workbook_path: provider.xlsx
score:
  method: AOTS
  model_variant: 2
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "xlsx", cfg.Provider.Source)
	assert.Equal(t, "AOTS", cfg.Score.Method)
	assert.Equal(t, 2, cfg.Score.ModelVariant)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.InDelta(t, 3.2, cfg.Score.FallbackScore, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("TEMPSCORE_STORE_DRIVER", "postgres")
	t.Setenv("TEMPSCORE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("TEMPSCORE_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

// validScoreConfig returns a Config that passes score-mode validation.
func validScoreConfig() *Config {
	return &Config{
		Store: StoreConfig{Driver: "sqlite", Path: "runs.db"},
		Provider: ProviderConfig{
			Source:           "csv",
			FundamentalsPath: "fundamentals.csv",
			TargetsPath:      "targets.csv",
		},
		Server: ServerConfig{Port: 8080},
	}
}

func TestValidateScore_AllPresent(t *testing.T) {
	assert.NoError(t, validScoreConfig().Validate("score"))
}

func TestValidateScore_MissingPaths(t *testing.T) {
	cfg := validScoreConfig()
	cfg.Provider.FundamentalsPath = ""
	cfg.Provider.TargetsPath = ""

	err := cfg.Validate("score")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fundamentals_path")
	assert.Contains(t, err.Error(), "targets_path")
}

func TestValidateScore_XLSXSource(t *testing.T) {
	cfg := validScoreConfig()
	cfg.Provider = ProviderConfig{Source: "xlsx"}

	err := cfg.Validate("score")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workbook_path")

	cfg.Provider.WorkbookPath = "provider.xlsx"
	assert.NoError(t, cfg.Validate("score"))
}

func TestValidateScore_UnknownSource(t *testing.T) {
	cfg := validScoreConfig()
	cfg.Provider.Source = "ftp"

	err := cfg.Validate("score")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider.source")
}

func TestValidateScore_RegistryNeedsURL(t *testing.T) {
	cfg := validScoreConfig()
	cfg.Registry.Enabled = true

	err := cfg.Validate("score")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry.base_url")
}

func TestValidateLoad(t *testing.T) {
	cfg := validScoreConfig()

	err := cfg.Validate("load")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider.database_url")

	cfg.Provider.DatabaseURL = "postgres://localhost/esg"
	assert.NoError(t, cfg.Validate("load"))

	cfg.Provider.Source = "postgres"
	err = cfg.Validate("load")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv or xlsx")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validScoreConfig()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateStoreDriver(t *testing.T) {
	cfg := validScoreConfig()
	cfg.Store = StoreConfig{Driver: "postgres"}

	err := cfg.Validate("runs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url")

	cfg.Store.DatabaseURL = "postgres://localhost/tempscore"
	assert.NoError(t, cfg.Validate("runs"))

	cfg.Store = StoreConfig{Driver: "mysql"}
	err = cfg.Validate("runs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite or postgres")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validScoreConfig().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
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
