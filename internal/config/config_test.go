package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Address() != "0.0.0.0:8080" {
		t.Errorf("address = %q", cfg.Server.Address())
	}
	if cfg.Database.Provider != "memory" {
		t.Errorf("provider = %q", cfg.Database.Provider)
	}
	if cfg.Models.Dir != "models" {
		t.Errorf("models dir = %q", cfg.Models.Dir)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forge.yaml")
	data := []byte(`
server:
  host: 127.0.0.1
  port: 3000
database:
  provider: sqlite
  url: forge.db
auth:
  secret: hunter2
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Address() != "127.0.0.1:3000" {
		t.Errorf("address = %q", cfg.Server.Address())
	}
	if cfg.Database.Provider != "sqlite" || cfg.Database.URL != "forge.db" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Auth.Secret != "hunter2" {
		t.Errorf("secret = %q", cfg.Auth.Secret)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("FORGE_SERVER_PORT", "9999")
	t.Setenv("FORGE_DATABASE_PROVIDER", "postgres")
	t.Setenv("FORGE_DATABASE_URL", "postgres://localhost/forge")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Database.Provider != "postgres" {
		t.Errorf("provider = %q", cfg.Database.Provider)
	}
}

func TestLoadAPIKeyAndMetricsToggles(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.APIKey || cfg.Metrics.Enabled {
		t.Errorf("api key auth and metrics should default off, got %+v %+v", cfg.Auth, cfg.Metrics)
	}

	t.Setenv("FORGE_AUTH_APIKEY", "true")
	t.Setenv("FORGE_METRICS_ENABLED", "true")

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Auth.APIKey {
		t.Error("FORGE_AUTH_APIKEY should enable api key auth")
	}
	if !cfg.Metrics.Enabled {
		t.Error("FORGE_METRICS_ENABLED should enable metrics")
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("FORGE_DATABASE_PROVIDER", "oracle")

	if _, err := Load(""); err == nil {
		t.Error("unknown provider should be rejected")
	}
}

func TestLoadRequiresURLForSQLProviders(t *testing.T) {
	t.Setenv("FORGE_DATABASE_PROVIDER", "postgres")
	t.Setenv("FORGE_DATABASE_URL", "")

	if _, err := Load(""); err == nil {
		t.Error("sql provider without url should be rejected")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("explicit missing config file should be an error")
	}
}
