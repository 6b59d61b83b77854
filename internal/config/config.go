// Package config loads taskdock configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration. It is built once at startup
// and passed explicitly to the components that need it; nothing reads the
// environment after Load returns.
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Sync     SyncConfig
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Dir string `envconfig:"TASKDOCK_DATA_DIR" default:"./data"`
}

// ServerConfig holds settings for the reference sync server.
type ServerConfig struct {
	Host            string        `envconfig:"TASKDOCK_SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"TASKDOCK_SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"TASKDOCK_SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"TASKDOCK_SERVER_WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"TASKDOCK_SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// SyncConfig holds reconciliation engine settings.
type SyncConfig struct {
	// Endpoint is the base URL of the remote peer.
	Endpoint string `envconfig:"TASKDOCK_SYNC_ENDPOINT" default:"http://localhost:8080"`

	// BatchSize bounds how many queue items go into one request.
	BatchSize int `envconfig:"TASKDOCK_SYNC_BATCH_SIZE" default:"10"`

	// MaxRetries is the retry ceiling; an item that fails this many
	// times is dequeued and its task marked with the error state.
	MaxRetries int `envconfig:"TASKDOCK_SYNC_MAX_RETRIES" default:"5"`

	// RequestTimeout bounds one batch exchange.
	RequestTimeout time.Duration `envconfig:"TASKDOCK_SYNC_REQUEST_TIMEOUT" default:"30s"`

	// ProbeTimeout bounds the connectivity check.
	ProbeTimeout time.Duration `envconfig:"TASKDOCK_SYNC_PROBE_TIMEOUT" default:"5s"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate checks that sync settings are usable.
func (s *SyncConfig) Validate() error {
	if s.Endpoint == "" {
		return fmt.Errorf("sync endpoint must not be empty")
	}
	if s.BatchSize < 1 {
		return fmt.Errorf("sync batch size must be at least 1, got %d", s.BatchSize)
	}
	if s.MaxRetries < 1 {
		return fmt.Errorf("sync max retries must be at least 1, got %d", s.MaxRetries)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Sync.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sync config: %w", err)
	}

	return &cfg, nil
}

// DefaultSync returns the documented sync defaults without touching the
// environment, for callers constructing an engine directly.
func DefaultSync(endpoint string) SyncConfig {
	return SyncConfig{
		Endpoint:       endpoint,
		BatchSize:      10,
		MaxRetries:     5,
		RequestTimeout: 30 * time.Second,
		ProbeTimeout:   5 * time.Second,
	}
}
