// Package config loads flowzero settings from defaults, an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	LedgerFile     = "file"
	LedgerPostgres = "postgres"

	ArchiveS3    = "s3"
	ArchiveLocal = "local"
)

// ErrMissingAPIKey is returned by RequireAPIKey when no key is configured.
var ErrMissingAPIKey = errors.New("api_key is required (env: PL_API_KEY)")

// Config holds all configuration values for the application.
type Config struct {
	// Imagery provider
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	RateLimit   float64       `mapstructure:"rate_limit"`
	RateBurst   int           `mapstructure:"rate_burst"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	PageSize    int           `mapstructure:"page_size"`

	// Order ledger
	LedgerDriver string `mapstructure:"ledger_driver"`
	LedgerPath   string `mapstructure:"ledger_path"`
	DatabaseURL  string `mapstructure:"database_url"`

	// Archival
	ArchiveDriver string `mapstructure:"archive_driver"`
	S3Bucket      string `mapstructure:"s3_bucket"`
	S3Region      string `mapstructure:"s3_region"`
	ArchiveDir    string `mapstructure:"archive_dir"`

	// Default subdivision width for batch submissions
	MaxMonths int `mapstructure:"max_months"`

	OTELEndpoint string `mapstructure:"otel_endpoint"`
	LogLevel     string `mapstructure:"log_level"`
	LogFormat    string `mapstructure:"log_format"`
}

// envNames maps each key to its environment variable.
var envNames = map[string]string{
	"api_key":        "PL_API_KEY",
	"base_url":       "PLANET_BASE_URL",
	"rate_limit":     "PLANET_RATE_LIMIT",
	"rate_burst":     "PLANET_RATE_BURST",
	"http_timeout":   "PLANET_HTTP_TIMEOUT",
	"page_size":      "PLANET_PAGE_SIZE",
	"ledger_driver":  "LEDGER_DRIVER",
	"ledger_path":    "LEDGER_PATH",
	"database_url":   "DATABASE_URL",
	"archive_driver": "ARCHIVE_DRIVER",
	"s3_bucket":      "S3_BUCKET",
	"s3_region":      "AWS_REGION",
	"archive_dir":    "ARCHIVE_DIR",
	"max_months":     "MAX_MONTHS",
	"otel_endpoint":  "OTEL_EXPORTER_OTLP_ENDPOINT",
	"log_level":      "LOG_LEVEL",
	"log_format":     "LOG_FORMAT",
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "https://api.planet.com")
	v.SetDefault("rate_limit", 2.0)
	v.SetDefault("rate_burst", 1)
	v.SetDefault("http_timeout", 60*time.Second)
	v.SetDefault("page_size", 250)
	v.SetDefault("ledger_driver", LedgerFile)
	v.SetDefault("ledger_path", "orders.json")
	v.SetDefault("archive_driver", ArchiveS3)
	v.SetDefault("s3_bucket", "flowzero")
	v.SetDefault("s3_region", "us-west-2")
	v.SetDefault("archive_dir", "archive")
	v.SetDefault("max_months", 6)
	v.SetDefault("otel_endpoint", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load reads configuration from defaults, the YAML file at path (if non-empty) and env vars.
func Load(path string) (*Config, error) {
	return LoadFrom(viper.New(), path)
}

// LoadFrom is Load on a caller-supplied viper instance, so CLI flags bound
// to v take precedence over file and environment values.
func LoadFrom(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	for key, env := range envNames {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerations and ranges.
func (c *Config) Validate() error {
	switch c.LedgerDriver {
	case LedgerFile:
		if c.LedgerPath == "" {
			return fmt.Errorf("ledger_path is required for the file ledger (env: LEDGER_PATH)")
		}
	case LedgerPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required (env: DATABASE_URL)")
		}
	default:
		return fmt.Errorf("invalid ledger_driver %q: must be %q or %q", c.LedgerDriver, LedgerFile, LedgerPostgres)
	}

	switch c.ArchiveDriver {
	case ArchiveS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("s3_bucket is required for the s3 archive (env: S3_BUCKET)")
		}
	case ArchiveLocal:
		if c.ArchiveDir == "" {
			return fmt.Errorf("archive_dir is required for the local archive (env: ARCHIVE_DIR)")
		}
	default:
		return fmt.Errorf("invalid archive_driver %q: must be %q or %q", c.ArchiveDriver, ArchiveS3, ArchiveLocal)
	}

	if c.RateLimit <= 0 {
		return fmt.Errorf("rate_limit must be positive, got %v", c.RateLimit)
	}
	if c.RateBurst < 1 {
		return fmt.Errorf("rate_burst must be at least 1, got %d", c.RateBurst)
	}
	if c.PageSize < 1 || c.PageSize > 250 {
		return fmt.Errorf("page_size must be between 1 and 250, got %d", c.PageSize)
	}
	if c.MaxMonths < 0 {
		return fmt.Errorf("max_months must not be negative, got %d", c.MaxMonths)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log_format %q: must be text or json", c.LogFormat)
	}
	return nil
}

// RequireAPIKey fails for commands that call the imagery provider without a key.
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}
