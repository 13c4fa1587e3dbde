// Package ratelimit throttles write endpoints per client.
package ratelimit

import (
	"time"
)

// Limiter decides whether a keyed request may proceed.
type Limiter interface {
	// Allow reports whether the request identified by key is admitted.
	Allow(key string) bool

	// Reset forgets any state for key.
	Reset(key string)
}

// Config holds the configuration for rate limiting.
type Config struct {
	Enabled bool `yaml:"enabled"`

	// Requests is the burst size and the number of requests refilled per Window.
	Requests int `yaml:"requests"`

	Window time.Duration `yaml:"window"`
}

// DefaultConfig limits trip mutations to 300 per minute per client.
func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		Requests: 300,
		Window:   time.Minute,
	}
}

// RelayConfig is the limit for the change feed webhook, which receives batches.
func RelayConfig() Config {
	return Config{
		Enabled:  true,
		Requests: 1200,
		Window:   time.Minute,
	}
}
