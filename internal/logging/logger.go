// Package logging builds the process logger: console and rotated file sinks
// fanned out from one slog.Logger, with an errors-only file and optional
// suppression of repeated warnings.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/syntrixbase/tripsync/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// File names inside the log directory.
const (
	MainLogFile  = "tripsync.log"
	ErrorLogFile = "errors.log"
)

var (
	closersMu sync.Mutex
	closers   []io.Closer
)

// Initialize builds the logger and installs it as slog's default.
func Initialize(cfg config.LoggingConfig) error {
	logger, err := NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(logger)

	slog.Info("Logging initialized",
		"level", cfg.Level,
		"format", cfg.Format,
		"dir", cfg.Dir,
		"console_enabled", cfg.Console.Enabled,
		"file_enabled", cfg.File.Enabled,
		"dedup_enabled", cfg.Dedup.Enabled,
	)
	return nil
}

// NewLogger creates a logger from cfg. Files and background flushers it opens
// are released by Shutdown.
func NewLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var sinks fanout

	if cfg.Console.Enabled {
		format, level := sinkSettings(cfg, cfg.Console)
		sinks = append(sinks, newHandler(os.Stdout, format, level))
	}

	if cfg.File.Enabled {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		format, level := sinkSettings(cfg, cfg.File)
		mainFile := rotatingFile(cfg, MainLogFile)
		sinks = append(sinks, newHandler(mainFile, format, level))

		errFile := rotatingFile(cfg, ErrorLogFile)
		sinks = append(sinks, minLevel{
			Handler: newHandler(errFile, format, slog.LevelWarn),
			floor:   slog.LevelWarn,
		})
	}

	var handler slog.Handler
	switch len(sinks) {
	case 0:
		handler = slog.NewTextHandler(io.Discard, nil)
	case 1:
		handler = sinks[0]
	default:
		handler = sinks
	}

	if cfg.Dedup.Enabled {
		dh := NewDedupHandler(handler, cfg.Dedup.Window, slog.LevelWarn)
		track(dh)
		handler = dh
	}

	return slog.New(handler), nil
}

// Shutdown flushes pending dedup summaries and closes every log file.
func Shutdown() error {
	closersMu.Lock()
	defer closersMu.Unlock()

	// Dedup handlers were tracked after their files; close in reverse.
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	closers = nil
	return errors.Join(errs...)
}

func track(c io.Closer) {
	closersMu.Lock()
	closers = append(closers, c)
	closersMu.Unlock()
}

func rotatingFile(cfg config.LoggingConfig, name string) *lumberjack.Logger {
	f := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, name),
		MaxSize:    cfg.Rotation.MaxSize,
		MaxBackups: cfg.Rotation.MaxBackups,
		MaxAge:     cfg.Rotation.MaxAge,
		Compress:   cfg.Rotation.Compress,
	}
	track(f)
	return f
}

func sinkSettings(cfg config.LoggingConfig, sink config.SinkConfig) (string, slog.Level) {
	format, level := sink.Format, sink.Level
	if format == "" {
		format = cfg.Format
	}
	if level == "" {
		level = cfg.Level
	}
	return format, parseLevel(level)
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
