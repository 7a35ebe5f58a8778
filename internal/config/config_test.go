package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("HTTP.Addr = %q, want %q", cfg.HTTP.Addr, ":8080")
	}
	if cfg.HTTP.Timeout != 60*time.Second {
		t.Errorf("HTTP.Timeout = %v, want 60s", cfg.HTTP.Timeout)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, "sqlite")
	}
	if cfg.NATS.AddedSubject != "tickets.added" {
		t.Errorf("NATS.AddedSubject = %q, want %q", cfg.NATS.AddedSubject, "tickets.added")
	}
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
http:
  addr: ":9090"
log:
  level: debug
storage:
  backend: redis
  redis:
    addr: "cache:6379"
    prefix: "wallet:"
nats:
  url: "nats://broker:4222"
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("HTTP.Addr = %q, want %q", cfg.HTTP.Addr, ":9090")
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}
	if cfg.Storage.Backend != "redis" || cfg.Storage.Redis.Addr != "cache:6379" || cfg.Storage.Redis.Prefix != "wallet:" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.NATS.URL != "nats://broker:4222" {
		t.Errorf("NATS.URL = %q", cfg.NATS.URL)
	}
	if cfg.NATS.ScanSubject != "tickets.scans" {
		t.Errorf("NATS.ScanSubject = %q, want default", cfg.NATS.ScanSubject)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of missing file succeeded")
	}
}
