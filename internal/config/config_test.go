package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("file overrides defaults", func(t *testing.T) {
		path := writeConfig(t, `
database:
  path: /tmp/ledger-test.db
cache:
  driver: redis
  ttl: 30s
display:
  currency: USD
`)
		c, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if c.Database.Path != "/tmp/ledger-test.db" {
			t.Errorf("Database.Path = %q", c.Database.Path)
		}
		if c.Cache.Driver != "redis" || c.Cache.TTL != 30*time.Second {
			t.Errorf("Cache = %+v", c.Cache)
		}
		if c.Display.Currency != "USD" {
			t.Errorf("Display.Currency = %q", c.Display.Currency)
		}
		if c.Server.Address != ":8080" || c.Auth.TokenTTL != 24*time.Hour {
			t.Errorf("defaults not applied: server=%+v auth=%+v", c.Server, c.Auth)
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := writeConfig(t, "log:\n  level: debug\n")
		t.Setenv("LEDGER_LOG_LEVEL", "warn")
		t.Setenv("LEDGER_SERVER_ADDRESS", ":9090")

		c, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if c.Log.Level != "warn" {
			t.Errorf("Log.Level = %q, want warn", c.Log.Level)
		}
		if c.Server.Address != ":9090" {
			t.Errorf("Server.Address = %q, want :9090", c.Server.Address)
		}
	})

	t.Run("missing explicit file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Error("expected error for missing config file")
		}
	})

	t.Run("invalid cache driver", func(t *testing.T) {
		path := writeConfig(t, "cache:\n  driver: memcached\n")
		if _, err := Load(path); err == nil {
			t.Error("expected validation error")
		}
	})
}
