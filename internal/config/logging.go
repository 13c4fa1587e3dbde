package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	services "github.com/syntrixbase/tripsync/internal/services/config"
)

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string         `yaml:"level"`  // debug, info, warn, error
	Format   string         `yaml:"format"` // text, json
	Dir      string         `yaml:"dir"`    // log directory path
	Rotation RotationConfig `yaml:"rotation"`
	Console  SinkConfig     `yaml:"console"`
	File     SinkConfig     `yaml:"file"`
	Dedup    DedupConfig    `yaml:"dedup"`
}

// RotationConfig holds log rotation settings
type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"`    // MB
	MaxBackups int  `yaml:"max_backups"` // number of files
	MaxAge     int  `yaml:"max_age"`     // days
	Compress   bool `yaml:"compress"`    // gzip old files
}

// SinkConfig configures one output. Empty level and format inherit the top-level values.
type SinkConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
}

// DedupConfig collapses repeated warnings within Window into one line with a count.
type DedupConfig struct {
	Enabled bool          `yaml:"enabled"`
	Window  time.Duration `yaml:"window"`
}

// DefaultLoggingConfig returns default logging configuration
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  "info",
		Format: "text",
		Dir:    "logs",
		Rotation: RotationConfig{
			MaxSize:    100,
			MaxBackups: 10,
			MaxAge:     30,
			Compress:   true,
		},
		Console: SinkConfig{Enabled: true, Level: "info", Format: "text"},
		File:    SinkConfig{Enabled: true, Level: "info", Format: "text"},
		Dedup:   DedupConfig{Enabled: true, Window: 5 * time.Second},
	}
}

// ApplyDefaults fills in missing values with defaults.
// Compress and the Enabled flags cannot be defaulted here since false is meaningful.
func (c *LoggingConfig) ApplyDefaults() {
	d := DefaultLoggingConfig()
	if c.Level == "" {
		c.Level = d.Level
	}
	if c.Format == "" {
		c.Format = d.Format
	}
	if c.Dir == "" {
		c.Dir = d.Dir
	}
	if c.Rotation.MaxSize == 0 {
		c.Rotation.MaxSize = d.Rotation.MaxSize
	}
	if c.Rotation.MaxBackups == 0 {
		c.Rotation.MaxBackups = d.Rotation.MaxBackups
	}
	if c.Rotation.MaxAge == 0 {
		c.Rotation.MaxAge = d.Rotation.MaxAge
	}
	if c.Dedup.Window == 0 {
		c.Dedup.Window = d.Dedup.Window
	}
	for _, sink := range []*SinkConfig{&c.Console, &c.File} {
		if sink.Level == "" {
			sink.Level = c.Level
		}
		if sink.Format == "" {
			sink.Format = c.Format
		}
	}
}

// ApplyEnvOverrides applies environment variable overrides
func (c *LoggingConfig) ApplyEnvOverrides() {
	if val := os.Getenv("TRIPSYNC_LOG_LEVEL"); val != "" {
		c.Level = val
		c.Console.Level = val
		c.File.Level = val
	}
	if val := os.Getenv("TRIPSYNC_LOG_FORMAT"); val != "" {
		c.Format = val
		c.Console.Format = val
		c.File.Format = val
	}
	if val := os.Getenv("TRIPSYNC_LOG_DIR"); val != "" {
		c.Dir = val
	}
}

// ResolvePaths places a relative log directory under dataDir, or next to
// configDir when no data directory is set.
func (c *LoggingConfig) ResolvePaths(configDir, dataDir string) {
	if c.Dir == "" || filepath.IsAbs(c.Dir) {
		return
	}
	base := dataDir
	if base == "" {
		base = filepath.Dir(configDir)
	}
	c.Dir = filepath.Clean(filepath.Join(base, c.Dir))
}

var (
	validLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats = map[string]bool{"text": true, "json": true}
)

// Validate validates the configuration
func (c *LoggingConfig) Validate(_ services.DeploymentMode) error {
	if !validLevels[c.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Level)
	}
	if !validFormats[c.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Format)
	}
	if c.File.Enabled && c.Dir == "" {
		return fmt.Errorf("log directory cannot be empty when file logging is enabled")
	}
	for name, sink := range map[string]SinkConfig{"console": c.Console, "file": c.File} {
		if !sink.Enabled {
			continue
		}
		if sink.Level != "" && !validLevels[sink.Level] {
			return fmt.Errorf("invalid %s log level: %s", name, sink.Level)
		}
		if sink.Format != "" && !validFormats[sink.Format] {
			return fmt.Errorf("invalid %s log format: %s", name, sink.Format)
		}
	}
	if c.Dedup.Enabled && c.Dedup.Window < 0 {
		return fmt.Errorf("logging.dedup.window must be positive")
	}
	return nil
}
