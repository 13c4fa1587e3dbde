package relay

import (
	"errors"
	"os"
	"time"

	services "github.com/syntrixbase/tripsync/internal/services/config"
)

// Config controls the change relay sources.
type Config struct {
	// Table is the change-feed table whose rows are trips.
	Table string `yaml:"table"`

	Webhook      WebhookConfig      `yaml:"webhook"`
	ChangeStream ChangeStreamConfig `yaml:"change_stream"`
}

// WebhookConfig configures the change-feed webhook.
type WebhookConfig struct {
	Enabled        bool  `yaml:"enabled"`
	MaxBodyBytes   int64 `yaml:"max_body_bytes"`
	MaxConcurrency int   `yaml:"max_concurrency"`
}

// ChangeStreamConfig configures the MongoDB change stream source.
type ChangeStreamConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

// DefaultConfig returns the default relay configuration.
func DefaultConfig() Config {
	return Config{
		Table: "Trips",
		Webhook: WebhookConfig{
			Enabled:        true,
			MaxBodyBytes:   4 << 20,
			MaxConcurrency: 16,
		},
		ChangeStream: ChangeStreamConfig{
			ReconnectDelay: time.Second,
		},
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.Table == "" {
		c.Table = d.Table
	}
	if c.Webhook.MaxBodyBytes == 0 {
		c.Webhook.MaxBodyBytes = d.Webhook.MaxBodyBytes
	}
	if c.Webhook.MaxConcurrency == 0 {
		c.Webhook.MaxConcurrency = d.Webhook.MaxConcurrency
	}
	if c.ChangeStream.ReconnectDelay == 0 {
		c.ChangeStream.ReconnectDelay = d.ChangeStream.ReconnectDelay
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("TRIPSYNC_RELAY_TABLE"); val != "" {
		c.Table = val
	}
	if val := os.Getenv("TRIPSYNC_RELAY_CHANGE_STREAM"); val != "" {
		c.ChangeStream.Enabled = val == "true"
	}
}

// ResolvePaths is a no-op; the relay has no paths.
func (*Config) ResolvePaths(_, _ string) {}

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate(_ services.DeploymentMode) error {
	if c.Table == "" {
		return errors.New("relay.table is required")
	}
	if c.Webhook.MaxBodyBytes < 0 {
		return errors.New("relay.webhook.max_body_bytes must be non-negative")
	}
	if c.Webhook.MaxConcurrency < 0 {
		return errors.New("relay.webhook.max_concurrency must be non-negative")
	}
	return nil
}
