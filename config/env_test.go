package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("ENTROPY_TIMEOUT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.StoreBackend != BackendMemory {
		t.Fatalf("store backend = %q, want %q", cfg.StoreBackend, BackendMemory)
	}
	if cfg.EntropyTimeout != 5*time.Second {
		t.Fatalf("entropy timeout = %v, want 5s", cfg.EntropyTimeout)
	}
	if len(cfg.AllowOrigins) != 1 || cfg.AllowOrigins[0] != "*" {
		t.Fatalf("allow origins = %v, want [*]", cfg.AllowOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "bolt")
	t.Setenv("BOLT_PATH", "/tmp/x.db")
	t.Setenv("ENTROPY_TIMEOUT", "750ms")
	t.Setenv("ALLOW_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.StoreBackend != BackendBolt || cfg.BoltPath != "/tmp/x.db" {
		t.Fatalf("unexpected storage config: %+v", cfg)
	}
	if cfg.EntropyTimeout != 750*time.Millisecond {
		t.Fatalf("entropy timeout = %v", cfg.EntropyTimeout)
	}
	if len(cfg.AllowOrigins) != 2 {
		t.Fatalf("allow origins = %v", cfg.AllowOrigins)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "cassandra")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
