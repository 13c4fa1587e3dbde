package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/syntrixbase/tripsync/internal/cache"
	"github.com/syntrixbase/tripsync/internal/channel"
	gateway "github.com/syntrixbase/tripsync/internal/gateway/config"
	"github.com/syntrixbase/tripsync/internal/realtime"
	"github.com/syntrixbase/tripsync/internal/relay"
	"github.com/syntrixbase/tripsync/internal/server"
	services "github.com/syntrixbase/tripsync/internal/services/config"
	"github.com/syntrixbase/tripsync/internal/store"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Deployment services.DeploymentConfig `yaml:"deployment"`
	Server     server.Config             `yaml:"server"`
	Logging    LoggingConfig             `yaml:"logging"`

	// Pipeline
	Channel  channel.Config  `yaml:"channel"`
	Cache    cache.Config    `yaml:"cache"`
	Store    store.Config    `yaml:"store"`
	Relay    relay.Config    `yaml:"relay"`
	Realtime realtime.Config `yaml:"realtime"`

	// Surface
	Gateway gateway.GatewayConfig `yaml:"gateway"`
}

// Default returns every section at its defaults, before files or env are applied.
func Default() *Config {
	return &Config{
		Deployment: services.DefaultDeploymentConfig(),
		Server:     server.DefaultConfig(),
		Logging:    DefaultLoggingConfig(),
		Channel:    channel.DefaultConfig(),
		Cache:      cache.DefaultConfig(),
		Store:      store.DefaultConfig(),
		Relay:      relay.DefaultConfig(),
		Realtime:   realtime.DefaultConfig(),
		Gateway:    gateway.DefaultGatewayConfig(),
	}
}

// LoadConfig loads configuration from configDir and the environment.
// Order: defaults -> config.yml -> config.local.yml -> ApplyDefaults -> ApplyEnvOverrides -> ResolvePaths -> Validate.
// A missing file is skipped; an unreadable or malformed one is an error.
func LoadConfig(configDir, dataDir string) (*Config, error) {
	cfg := Default()

	for _, name := range []string{"config.yml", "config.local.yml"} {
		if err := loadFile(filepath.Join(configDir, name), cfg); err != nil {
			return nil, err
		}
	}

	// Deployment goes first: its mode is passed to every other Validate.
	if err := prepareSections(configDir, dataDir, "", section("deployment", &cfg.Deployment)); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if err := prepareSections(configDir, dataDir, cfg.Deployment.Mode,
		section("server", &cfg.Server),
		section("logging", &cfg.Logging),
		section("channel", &cfg.Channel),
		section("cache", &cfg.Cache),
		section("store", &cfg.Store),
		section("relay", &cfg.Relay),
		section("realtime", &cfg.Realtime),
		section("gateway", &cfg.Gateway),
	); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	return cfg, nil
}

func loadFile(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", filename, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", filename, err)
	}
	return nil
}
