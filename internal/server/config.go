package server

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/syntrixbase/tripsync/internal/server/ratelimit"
	services "github.com/syntrixbase/tripsync/internal/services/config"
)

// Config describes the HTTP and gRPC listeners shared by every API surface.
type Config struct {
	Host string `yaml:"host"`

	HTTPPort         int           `yaml:"http_port"`
	HTTPReadTimeout  time.Duration `yaml:"http_read_timeout"`
	HTTPWriteTimeout time.Duration `yaml:"http_write_timeout"` // 0 keeps SSE streams open
	HTTPIdleTimeout  time.Duration `yaml:"http_idle_timeout"`

	EnableCORS       bool     `yaml:"enable_cors"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	CORSMaxAge       int      `yaml:"cors_max_age"`

	// RateLimit throttles trip mutations per client; RelayRateLimit throttles
	// the change feed webhook. Reads and streams are not limited.
	RateLimit      ratelimit.Config `yaml:"rate_limit"`
	RelayRateLimit ratelimit.Config `yaml:"relay_rate_limit"`

	GRPCPort          int  `yaml:"grpc_port"`
	GRPCMaxConcurrent uint `yaml:"grpc_max_concurrent"`
	EnableReflection  bool `yaml:"enable_reflection"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func DefaultConfig() Config {
	return Config{
		Host:              "localhost",
		HTTPPort:          8080,
		HTTPReadTimeout:   10 * time.Second,
		HTTPIdleTimeout:   time.Minute,
		AllowedMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:    []string{"Content-Type", RequestIDHeader},
		CORSMaxAge:        600,
		RateLimit:         ratelimit.DefaultConfig(),
		RelayRateLimit:    ratelimit.RelayConfig(),
		GRPCPort:          9000,
		GRPCMaxConcurrent: 100,
		ShutdownTimeout:   10 * time.Second,
	}
}

func fill[T comparable](field *T, def T) {
	var zero T
	if *field == zero {
		*field = def
	}
}

// ApplyDefaults fills zero fields. Rate limiter Enabled flags are left as
// loaded, so a config file can switch them off.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	fill(&c.Host, d.Host)
	fill(&c.HTTPPort, d.HTTPPort)
	fill(&c.HTTPReadTimeout, d.HTTPReadTimeout)
	fill(&c.HTTPIdleTimeout, d.HTTPIdleTimeout)
	fill(&c.CORSMaxAge, d.CORSMaxAge)
	fill(&c.GRPCPort, d.GRPCPort)
	fill(&c.GRPCMaxConcurrent, d.GRPCMaxConcurrent)
	fill(&c.ShutdownTimeout, d.ShutdownTimeout)
	if len(c.AllowedMethods) == 0 {
		c.AllowedMethods = d.AllowedMethods
	}
	if len(c.AllowedHeaders) == 0 {
		c.AllowedHeaders = d.AllowedHeaders
	}
	for _, rl := range []struct{ cfg, def *ratelimit.Config }{
		{&c.RateLimit, &d.RateLimit},
		{&c.RelayRateLimit, &d.RelayRateLimit},
	} {
		fill(&rl.cfg.Requests, rl.def.Requests)
		fill(&rl.cfg.Window, rl.def.Window)
	}
}

// ApplyEnvOverrides reads TRIPSYNC_HOST, TRIPSYNC_HTTP_PORT and
// TRIPSYNC_GRPC_PORT. Unparseable ports are ignored.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("TRIPSYNC_HOST"); v != "" {
		c.Host = v
	}
	for env, port := range map[string]*int{
		"TRIPSYNC_HTTP_PORT": &c.HTTPPort,
		"TRIPSYNC_GRPC_PORT": &c.GRPCPort,
	} {
		if n, err := strconv.Atoi(os.Getenv(env)); err == nil {
			*port = n
		}
	}
}

func (c *Config) ResolvePaths(_, _ string) {}

func (c *Config) Validate(_ services.DeploymentMode) error {
	for name, port := range map[string]int{"http_port": c.HTTPPort, "grpc_port": c.GRPCPort} {
		if port < 0 || port > 65535 {
			return fmt.Errorf("server.%s out of range: %d", name, port)
		}
	}
	if c.HTTPPort != 0 && c.HTTPPort == c.GRPCPort {
		return errors.New("server.http_port and server.grpc_port must differ")
	}
	if c.RateLimit.Enabled && c.RateLimit.Requests < 1 {
		return errors.New("server.rate_limit.requests must be positive")
	}
	if c.RelayRateLimit.Enabled && c.RelayRateLimit.Requests < 1 {
		return errors.New("server.relay_rate_limit.requests must be positive")
	}
	return nil
}
