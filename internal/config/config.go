// Package config loads application configuration from config.yaml and the
// environment and initializes the global logger.
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
	Input   InputConfig   `yaml:"input" mapstructure:"input"`
	OMDB    OMDBConfig    `yaml:"omdb" mapstructure:"omdb"`
	Enrich  EnrichConfig  `yaml:"enrich" mapstructure:"enrich"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Staging StagingConfig `yaml:"staging" mapstructure:"staging"`
	Report  ReportConfig  `yaml:"report" mapstructure:"report"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// InputConfig locates the revenue extract. Path may be a local file, an
// http(s):// URL, or an ftp:// URL; CSV and XLSX are detected by extension.
type InputConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// OMDBConfig holds metadata API settings.
type OMDBConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	RequestsSec float64 `yaml:"requests_sec" mapstructure:"requests_sec"`
}

// EnrichConfig configures candidate selection and the enrichment loop.
type EnrichConfig struct {
	DailyBudget      int     `yaml:"daily_budget" mapstructure:"daily_budget"`
	TopK             int     `yaml:"top_k" mapstructure:"top_k"`
	Concurrency      int     `yaml:"concurrency" mapstructure:"concurrency"`
	MaxRetries       int     `yaml:"max_retries" mapstructure:"max_retries"`
	FuzzyThreshold   float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	ProgressInterval int     `yaml:"progress_interval" mapstructure:"progress_interval"`
}

// CacheConfig configures the enrichment cache backend.
type CacheConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	Path   string `yaml:"path" mapstructure:"path"`
}

// StagingConfig configures the staging database backend.
type StagingConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
}

// ReportConfig configures the end-of-run report artifact.
type ReportConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
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
	v.SetEnvPrefix("MARQUEE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("input.path", "revenues_per_day.csv")
	v.SetDefault("omdb.base_url", "https://www.omdbapi.com")
	v.SetDefault("omdb.requests_sec", 5)
	v.SetDefault("enrich.daily_budget", 1000)
	v.SetDefault("enrich.top_k", 800)
	v.SetDefault("enrich.concurrency", 4)
	v.SetDefault("enrich.max_retries", 3)
	v.SetDefault("enrich.fuzzy_threshold", 0.5)
	v.SetDefault("enrich.progress_interval", 100)
	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.path", "marquee_cache.db")
	v.SetDefault("staging.driver", "sqlite")
	v.SetDefault("staging.path", "marquee_staging.db")
	v.SetDefault("report.path", "run_report.yaml")
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
