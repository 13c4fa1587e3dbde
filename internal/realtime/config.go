package realtime

import (
	"errors"
	"os"
	"strings"
	"time"

	services "github.com/syntrixbase/tripsync/internal/services/config"
)

// Config controls realtime transports.
type Config struct {
	AllowedOrigins    []string      `yaml:"allowed_origins"`
	AllowDevOrigin    bool          `yaml:"allow_dev_origin"`
	SendBuffer        int           `yaml:"send_buffer"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// DefaultConfig returns the default realtime configuration.
func DefaultConfig() Config {
	return Config{
		SendBuffer:        256,
		HeartbeatInterval: 15 * time.Second,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("TRIPSYNC_REALTIME_ALLOWED_ORIGINS"); val != "" {
		c.AllowedOrigins = strings.Split(val, ",")
	}
	if os.Getenv("TRIPSYNC_REALTIME_ALLOW_DEV_ORIGIN") == "true" {
		c.AllowDevOrigin = true
	}
}

// ResolvePaths is a no-op; realtime has no paths.
func (*Config) ResolvePaths(_, _ string) {}

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate(_ services.DeploymentMode) error {
	if c.SendBuffer < 0 {
		return errors.New("realtime.send_buffer must be non-negative")
	}
	return nil
}

func newHeartbeat(d time.Duration) *time.Ticker {
	if d <= 0 {
		d = DefaultConfig().HeartbeatInterval
	}
	return time.NewTicker(d)
}
