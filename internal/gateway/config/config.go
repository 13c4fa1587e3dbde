package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	services "github.com/syntrixbase/tripsync/internal/services/config"
)

// GatewayConfig controls the REST surface.
type GatewayConfig struct {
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes"`
	DefaultListLimit int           `yaml:"default_list_limit"`
	MaxListLimit     int           `yaml:"max_list_limit"`
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		RequestTimeout:   30 * time.Second,
		MaxBodyBytes:     1 << 20,
		DefaultListLimit: 100,
		MaxListLimit:     1000,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (g *GatewayConfig) ApplyDefaults() {
	defaults := DefaultGatewayConfig()
	if g.RequestTimeout == 0 {
		g.RequestTimeout = defaults.RequestTimeout
	}
	if g.MaxBodyBytes == 0 {
		g.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if g.DefaultListLimit == 0 {
		g.DefaultListLimit = defaults.DefaultListLimit
	}
	if g.MaxListLimit == 0 {
		g.MaxListLimit = defaults.MaxListLimit
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (g *GatewayConfig) ApplyEnvOverrides() {
	if val := os.Getenv("TRIPSYNC_GATEWAY_MAX_LIST_LIMIT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			g.MaxListLimit = n
		}
	}
}

// ResolvePaths resolves relative paths using the given directories.
// No paths to resolve in gateway config.
func (g *GatewayConfig) ResolvePaths(_, _ string) { _ = g }

// Validate returns an error if the configuration is invalid.
func (g *GatewayConfig) Validate(_ services.DeploymentMode) error {
	if g.MaxListLimit < 1 {
		return fmt.Errorf("gateway.max_list_limit must be positive")
	}
	if g.DefaultListLimit < 1 || g.DefaultListLimit > g.MaxListLimit {
		return fmt.Errorf("gateway.default_list_limit must be between 1 and %d", g.MaxListLimit)
	}
	if g.RequestTimeout < 0 || g.MaxBodyBytes < 0 {
		return fmt.Errorf("gateway.request_timeout and gateway.max_body_bytes must be non-negative")
	}
	return nil
}
