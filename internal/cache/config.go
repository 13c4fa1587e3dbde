package cache

import (
	"errors"
	"fmt"
	"os"
	"time"

	services "github.com/syntrixbase/tripsync/internal/services/config"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config configures the cache store.
type Config struct {
	Backend string      `yaml:"backend"` // memory or redis
	Redis   RedisConfig `yaml:"redis"`
	TTL     TTLPolicy   `yaml:"ttl"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		Backend: BackendMemory,
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			DialTimeout: 5 * time.Second,
		},
		TTL: DefaultTTLPolicy(),
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Backend == "" {
		c.Backend = defaults.Backend
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = defaults.Redis.Addr
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = defaults.Redis.DialTimeout
	}
	if c.TTL.Default == 0 {
		c.TTL.Default = defaults.TTL.Default
	}
	if c.TTL.Active == 0 {
		c.TTL.Active = defaults.TTL.Active
	}
	if c.TTL.Completed == 0 {
		c.TTL.Completed = defaults.TTL.Completed
	}
	if c.TTL.List == 0 {
		c.TTL.List = defaults.TTL.List
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("TRIPSYNC_CACHE_BACKEND"); val != "" {
		c.Backend = val
	}
	if val := os.Getenv("TRIPSYNC_REDIS_ADDR"); val != "" {
		c.Redis.Addr = val
	}
	if val := os.Getenv("TRIPSYNC_REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}
}

// ResolvePaths is a no-op; the cache has no paths.
func (*Config) ResolvePaths(_, _ string) {}

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate(mode services.DeploymentMode) error {
	switch c.Backend {
	case BackendMemory:
		if mode.IsDistributed() {
			return errors.New("cache.backend 'memory' is only supported in standalone mode")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("cache.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be 'memory' or 'redis', got '%s'", c.Backend)
	}
	if c.TTL.Default < 0 || c.TTL.Active < 0 || c.TTL.Completed < 0 || c.TTL.List < 0 {
		return errors.New("cache.ttl durations must be non-negative")
	}
	return nil
}
