package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadParsesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: "9090"
redis:
  addr: localhost:6379
  grace: 2m
postgres:
  url: postgres://quiz@localhost/quiz
  migrate: true
attempt:
  submit_timeout: 5s
log:
  level: debug
  format: text
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !cfg.Postgres.Migrate || cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if d := TTLDuration(cfg.Attempt.SubmitTimeout, 0); d != 5*time.Second {
		t.Fatalf("expected 5s submit timeout, got %v", d)
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "" {
		t.Fatalf("expected zero config, got %+v", cfg)
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if d := TTLDuration("", time.Minute); d != time.Minute {
		t.Fatalf("expected fallback for empty, got %v", d)
	}
	if d := TTLDuration("soon", time.Minute); d != time.Minute {
		t.Fatalf("expected fallback for garbage, got %v", d)
	}
}
