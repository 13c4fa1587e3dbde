package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	services "github.com/syntrixbase/tripsync/internal/services/config"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, DefaultTTLPolicy(), cfg.TTL)
}

func TestConfig_ApplyEnvOverrides(t *testing.T) {
	t.Setenv("TRIPSYNC_CACHE_BACKEND", "redis")
	t.Setenv("TRIPSYNC_REDIS_ADDR", "cache:6380")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, BackendRedis, cfg.Backend)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		mode    services.DeploymentMode
		wantErr bool
	}{
		{"memory standalone", func(c *Config) {}, services.ModeStandalone, false},
		{"memory distributed", func(c *Config) {}, services.ModeDistributed, true},
		{"redis distributed", func(c *Config) { c.Backend = BackendRedis }, services.ModeDistributed, false},
		{"redis without addr", func(c *Config) { c.Backend = BackendRedis; c.Redis.Addr = "" }, services.ModeStandalone, true},
		{"unknown backend", func(c *Config) { c.Backend = "memcached" }, services.ModeStandalone, true},
		{"negative ttl", func(c *Config) { c.TTL.Active = -time.Second }, services.ModeStandalone, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate(tt.mode)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
