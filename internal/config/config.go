// Package config loads application configuration from config.yaml and
// TEMPSCORE_* environment variables, and owns global logger setup.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Provider ProviderConfig `yaml:"provider" mapstructure:"provider"`
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`
	Score    ScoreConfig    `yaml:"score" mapstructure:"score"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"` // sqlite or postgres
	Path        string     `yaml:"path" mapstructure:"path"`     // sqlite file path
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig holds Postgres connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// ProviderConfig configures where company data comes from.
type ProviderConfig struct {
	Source           string     `yaml:"source" mapstructure:"source"` // csv, xlsx or postgres
	FundamentalsPath string     `yaml:"fundamentals_path" mapstructure:"fundamentals_path"`
	TargetsPath      string     `yaml:"targets_path" mapstructure:"targets_path"`
	Charset          string     `yaml:"charset" mapstructure:"charset"` // csv file encoding, empty = utf-8
	WorkbookPath     string     `yaml:"workbook_path" mapstructure:"workbook_path"`
	DatabaseURL      string     `yaml:"database_url" mapstructure:"database_url"`
	Pool             PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// RegistryConfig configures the target validation registry client.
type RegistryConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	BaseURL    string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// ScoreConfig holds scoring defaults; flags override per run.
type ScoreConfig struct {
	TimeFrames    []string `yaml:"time_frames" mapstructure:"time_frames"`
	Scopes        []string `yaml:"scopes" mapstructure:"scopes"`
	Method        string   `yaml:"method" mapstructure:"method"`
	Grouping      []string `yaml:"grouping" mapstructure:"grouping"`
	ModelVariant  int      `yaml:"model_variant" mapstructure:"model_variant"`
	FallbackScore float64  `yaml:"fallback_score" mapstructure:"fallback_score"`
	CurvesPath    string   `yaml:"curves_path" mapstructure:"curves_path"` // empty = embedded curves
}

// ServerConfig configures the scoring API server. An empty APIKey
// disables request authentication.
type ServerConfig struct {
	Port   int    `yaml:"port" mapstructure:"port"`
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TEMPSCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "tempscore.db")
	v.SetDefault("provider.source", "csv")
	v.SetDefault("registry.enabled", false)
	v.SetDefault("registry.rate_per_sec", 5)
	v.SetDefault("score.time_frames", []string{"short", "mid", "long"})
	v.SetDefault("score.scopes", []string{"s1s2", "s3", "s1s2s3"})
	v.SetDefault("score.method", "WATS")
	v.SetDefault("score.model_variant", 4)
	v.SetDefault("score.fallback_score", 3.2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration required for a command mode. Modes
// are "score", "load" and "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	checkProvider := func() {
		switch c.Provider.Source {
		case "csv":
			if c.Provider.FundamentalsPath == "" {
				problems = append(problems, "provider.fundamentals_path is required for csv source")
			}
			if c.Provider.TargetsPath == "" {
				problems = append(problems, "provider.targets_path is required for csv source")
			}
		case "xlsx":
			if c.Provider.WorkbookPath == "" {
				problems = append(problems, "provider.workbook_path is required for xlsx source")
			}
		case "postgres":
			if c.Provider.DatabaseURL == "" {
				problems = append(problems, "provider.database_url is required for postgres source")
			}
		default:
			problems = append(problems, "provider.source must be csv, xlsx or postgres")
		}
		if c.Registry.Enabled && c.Registry.BaseURL == "" {
			problems = append(problems, "registry.base_url is required when registry.enabled")
		}
	}

	checkStore := func() {
		switch c.Store.Driver {
		case "sqlite":
			if c.Store.Path == "" {
				problems = append(problems, "store.path is required for sqlite driver")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for postgres driver")
			}
		default:
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
	}

	switch mode {
	case "score":
		checkProvider()
		checkStore()
	case "load":
		// load reads a csv/xlsx export and writes it to Postgres.
		if c.Provider.Source == "postgres" {
			problems = append(problems, "load reads from csv or xlsx, not postgres")
		} else {
			checkProvider()
		}
		if c.Provider.DatabaseURL == "" {
			problems = append(problems, "provider.database_url is required to load into")
		}
	case "serve":
		checkProvider()
		checkStore()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "runs":
		checkStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
