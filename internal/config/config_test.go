package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range envNames {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flowzero.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.BaseURL != "https://api.planet.com" {
		t.Errorf("expected BaseURL https://api.planet.com, got %s", cfg.BaseURL)
	}
	if cfg.RateLimit != 2 {
		t.Errorf("expected RateLimit 2, got %v", cfg.RateLimit)
	}
	if cfg.HTTPTimeout != 60*time.Second {
		t.Errorf("expected HTTPTimeout 60s, got %v", cfg.HTTPTimeout)
	}
	if cfg.PageSize != 250 {
		t.Errorf("expected PageSize 250, got %d", cfg.PageSize)
	}
	if cfg.LedgerDriver != LedgerFile || cfg.LedgerPath != "orders.json" {
		t.Errorf("expected file ledger at orders.json, got %s %s", cfg.LedgerDriver, cfg.LedgerPath)
	}
	if cfg.ArchiveDriver != ArchiveS3 || cfg.S3Bucket != "flowzero" || cfg.S3Region != "us-west-2" {
		t.Errorf("unexpected archive defaults: %+v", cfg)
	}
	if cfg.MaxMonths != 6 {
		t.Errorf("expected MaxMonths 6, got %d", cfg.MaxMonths)
	}
	if cfg.OTELEndpoint != "" {
		t.Errorf("expected telemetry disabled by default, got %s", cfg.OTELEndpoint)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("unexpected log defaults: %s %s", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PL_API_KEY", "pl-key")
	t.Setenv("PLANET_BASE_URL", "http://localhost:9000")
	t.Setenv("PLANET_RATE_LIMIT", "5")
	t.Setenv("PLANET_HTTP_TIMEOUT", "2s")
	t.Setenv("LEDGER_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://custom/db")
	t.Setenv("ARCHIVE_DRIVER", "local")
	t.Setenv("ARCHIVE_DIR", "/tmp/flowzero")
	t.Setenv("MAX_MONTHS", "9")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4317")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIKey != "pl-key" {
		t.Errorf("expected APIKey from env, got %s", cfg.APIKey)
	}
	if cfg.BaseURL != "http://localhost:9000" {
		t.Errorf("expected BaseURL from env, got %s", cfg.BaseURL)
	}
	if cfg.RateLimit != 5 {
		t.Errorf("expected RateLimit 5, got %v", cfg.RateLimit)
	}
	if cfg.HTTPTimeout != 2*time.Second {
		t.Errorf("expected HTTPTimeout 2s, got %v", cfg.HTTPTimeout)
	}
	if cfg.LedgerDriver != LedgerPostgres || cfg.DatabaseURL != "postgres://custom/db" {
		t.Errorf("expected postgres ledger from env, got %s %s", cfg.LedgerDriver, cfg.DatabaseURL)
	}
	if cfg.ArchiveDriver != ArchiveLocal || cfg.ArchiveDir != "/tmp/flowzero" {
		t.Errorf("expected local archive from env, got %s %s", cfg.ArchiveDriver, cfg.ArchiveDir)
	}
	if cfg.MaxMonths != 9 {
		t.Errorf("expected MaxMonths 9, got %d", cfg.MaxMonths)
	}
	if cfg.OTELEndpoint != "otel-collector:4317" {
		t.Errorf("expected OTELEndpoint otel-collector:4317, got %s", cfg.OTELEndpoint)
	}
}

func TestLoad_PostgresRequiresDatabaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEDGER_DRIVER", "postgres")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
	if err.Error() != "database_url is required (env: DATABASE_URL)" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		env, value string
	}{
		{"LEDGER_DRIVER", "sqlite"},
		{"ARCHIVE_DRIVER", "gcs"},
		{"PLANET_RATE_LIMIT", "0"},
		{"PLANET_PAGE_SIZE", "500"},
		{"MAX_MONTHS", "-1"},
		{"LOG_FORMAT", "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.env, tt.value)
			if _, err := Load(""); err == nil {
				t.Errorf("expected error for %s=%s", tt.env, tt.value)
			}
		})
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
api_key: "from-file"
ledger_path: "/data/orders.json"
max_months: 3
archive_driver: local
archive_dir: /data/archive
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIKey != "from-file" {
		t.Errorf("expected APIKey from config file, got %s", cfg.APIKey)
	}
	if cfg.LedgerPath != "/data/orders.json" {
		t.Errorf("expected LedgerPath from config file, got %s", cfg.LedgerPath)
	}
	if cfg.MaxMonths != 3 {
		t.Errorf("expected MaxMonths 3, got %d", cfg.MaxMonths)
	}
	if cfg.ArchiveDriver != ArchiveLocal {
		t.Errorf("expected ArchiveDriver local, got %s", cfg.ArchiveDriver)
	}
}

func TestLoad_EnvOverridesConfigFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
api_key: "from-file"
max_months: 3
`)
	t.Setenv("PL_API_KEY", "from-env")
	t.Setenv("MAX_MONTHS", "12")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIKey != "from-env" {
		t.Errorf("expected APIKey from env, got %s", cfg.APIKey)
	}
	if cfg.MaxMonths != 12 {
		t.Errorf("expected MaxMonths 12 from env, got %d", cfg.MaxMonths)
	}
}

func TestLoadFrom_FlagValuesWin(t *testing.T) {
	clearEnv(t)
	t.Setenv("LEDGER_PATH", "env.json")

	v := viper.New()
	v.Set("ledger_path", "flag.json")

	cfg, err := LoadFrom(v, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LedgerPath != "flag.json" {
		t.Errorf("expected explicit value to win, got %s", cfg.LedgerPath)
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	clearEnv(t)

	_, err := Load("/nonexistent/path/to/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent config file")
	}
}

func TestRequireAPIKey(t *testing.T) {
	cfg := &Config{}
	if !errors.Is(cfg.RequireAPIKey(), ErrMissingAPIKey) {
		t.Error("expected ErrMissingAPIKey")
	}
	cfg.APIKey = "k"
	if err := cfg.RequireAPIKey(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
