package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/tripsync/internal/server/ratelimit"
	services "github.com/syntrixbase/tripsync/internal/services/config"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	var empty Config
	empty.ApplyDefaults()

	d := DefaultConfig()
	assert.Equal(t, d.Host, empty.Host)
	assert.Equal(t, d.HTTPPort, empty.HTTPPort)
	assert.Equal(t, d.GRPCPort, empty.GRPCPort)
	assert.Equal(t, d.AllowedHeaders, empty.AllowedHeaders)
	assert.Equal(t, d.RateLimit.Requests, empty.RateLimit.Requests)
	assert.Equal(t, d.RelayRateLimit.Window, empty.RelayRateLimit.Window)
	assert.Zero(t, empty.HTTPWriteTimeout)
	assert.False(t, empty.RateLimit.Enabled)

	custom := Config{
		Host:             "0.0.0.0",
		HTTPPort:         8081,
		HTTPWriteTimeout: 30 * time.Second,
		RateLimit:        ratelimit.Config{Enabled: true, Requests: 5, Window: time.Second},
	}
	custom.ApplyDefaults()
	assert.Equal(t, "0.0.0.0", custom.Host)
	assert.Equal(t, 8081, custom.HTTPPort)
	assert.Equal(t, 30*time.Second, custom.HTTPWriteTimeout)
	assert.Equal(t, 5, custom.RateLimit.Requests)
	assert.Equal(t, time.Second, custom.RateLimit.Window)
}

func TestConfig_ApplyEnvOverrides(t *testing.T) {
	t.Setenv("TRIPSYNC_HOST", "0.0.0.0")
	t.Setenv("TRIPSYNC_HTTP_PORT", "18080")
	t.Setenv("TRIPSYNC_GRPC_PORT", "grpc")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 18080, cfg.HTTPPort)
	assert.Equal(t, 9000, cfg.GRPCPort)
}

func TestConfig_Validate(t *testing.T) {
	def := DefaultConfig()
	require.NoError(t, def.Validate(services.ModeDistributed))

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"http port range", func(c *Config) { c.HTTPPort = 70000 }, "http_port"},
		{"grpc port range", func(c *Config) { c.GRPCPort = -1 }, "grpc_port"},
		{"same ports", func(c *Config) { c.GRPCPort = c.HTTPPort }, "must differ"},
		{"mutation limit", func(c *Config) { c.RateLimit.Requests = 0 }, "rate_limit"},
		{"relay limit", func(c *Config) { c.RelayRateLimit.Requests = 0 }, "relay_rate_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(services.ModeStandalone), tt.wantErr)
		})
	}

	both := DefaultConfig()
	both.HTTPPort, both.GRPCPort = 0, 0
	assert.NoError(t, both.Validate(services.ModeStandalone))
}
