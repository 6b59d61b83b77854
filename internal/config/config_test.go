// Package config tests for configuration loading.
package config

import (
	"testing"
	"time"
)

// TestLoadDefaults verifies documented defaults apply with a clean environment.
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Sync.BatchSize != 10 {
		t.Errorf("BatchSize = %d, want 10", cfg.Sync.BatchSize)
	}
	if cfg.Sync.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.Sync.MaxRetries)
	}
	if cfg.Sync.Endpoint == "" {
		t.Error("Endpoint should have a default")
	}
	if cfg.Sync.ProbeTimeout != 5*time.Second {
		t.Errorf("ProbeTimeout = %v, want 5s", cfg.Sync.ProbeTimeout)
	}
}

// TestLoadOverrides verifies environment variables override defaults.
func TestLoadOverrides(t *testing.T) {
	t.Setenv("TASKDOCK_SYNC_BATCH_SIZE", "25")
	t.Setenv("TASKDOCK_SYNC_ENDPOINT", "http://sync.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Sync.BatchSize != 25 {
		t.Errorf("BatchSize = %d, want 25", cfg.Sync.BatchSize)
	}
	if cfg.Sync.Endpoint != "http://sync.example.com" {
		t.Errorf("Endpoint = %q, want override", cfg.Sync.Endpoint)
	}
}

// TestSyncValidate verifies bad sync settings are rejected.
func TestSyncValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  SyncConfig
	}{
		{"empty endpoint", SyncConfig{Endpoint: "", BatchSize: 10, MaxRetries: 5}},
		{"zero batch size", SyncConfig{Endpoint: "http://x", BatchSize: 0, MaxRetries: 5}},
		{"zero retries", SyncConfig{Endpoint: "http://x", BatchSize: 10, MaxRetries: 0}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if err := c.cfg.Validate(); err == nil {
				t.Error("Validate should reject this config")
			}
		})
	}
}

// TestServerAddress verifies host:port formatting.
func TestServerAddress(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 9090}
	if s.Address() != "127.0.0.1:9090" {
		t.Errorf("Address() = %q, want 127.0.0.1:9090", s.Address())
	}
}

// TestDefaultSync verifies the programmatic defaults match the documented ones.
func TestDefaultSync(t *testing.T) {
	cfg := DefaultSync("http://localhost:8080")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.BatchSize != 10 || cfg.MaxRetries != 5 {
		t.Errorf("defaults = %+v, want batch 10 / retries 5", cfg)
	}
}
