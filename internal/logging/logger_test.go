package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/tripsync/internal/config"
)

// fileConfig logs to a temp dir only, without dedup.
func fileConfig(t *testing.T) config.LoggingConfig {
	t.Helper()
	cfg := config.DefaultLoggingConfig()
	cfg.Dir = t.TempDir()
	cfg.Console.Enabled = false
	cfg.Dedup.Enabled = false
	return cfg
}

func readLog(t *testing.T, cfg config.LoggingConfig, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(cfg.Dir, name))
	require.NoError(t, err)
	return string(data)
}

func TestNewLogger_Formats(t *testing.T) {
	tests := []struct {
		format string
		want   []string
	}{
		{"text", []string{"msg=projected", "trip=T-1"}},
		{"json", []string{`"msg":"projected"`, `"trip":"T-1"`}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			cfg := fileConfig(t)
			cfg.File.Format = tt.format

			logger, err := NewLogger(cfg)
			require.NoError(t, err)
			logger.Info("projected", "trip", "T-1")
			require.NoError(t, Shutdown())

			content := readLog(t, cfg, MainLogFile)
			for _, w := range tt.want {
				assert.Contains(t, content, w)
			}
		})
	}
}

func TestNewLogger_ErrorFileKeepsWarningsAndAbove(t *testing.T) {
	cfg := fileConfig(t)
	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	logger.Info("consumer started")
	logger.Warn("cache write failed")
	logger.Error("dead-letter publish failed")
	require.NoError(t, Shutdown())

	main := readLog(t, cfg, MainLogFile)
	for _, msg := range []string{"consumer started", "cache write failed", "dead-letter publish failed"} {
		assert.Contains(t, main, msg)
	}

	errs := readLog(t, cfg, ErrorLogFile)
	assert.NotContains(t, errs, "consumer started")
	assert.Contains(t, errs, "cache write failed")
	assert.Contains(t, errs, "dead-letter publish failed")
}

func TestNewLogger_InfoOnlyLeavesErrorFileUnwritten(t *testing.T) {
	cfg := fileConfig(t)
	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	logger.Info("ready")
	require.NoError(t, Shutdown())

	assert.FileExists(t, filepath.Join(cfg.Dir, MainLogFile))
	assert.NoFileExists(t, filepath.Join(cfg.Dir, ErrorLogFile))
}

func TestInitialize_InstallsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cfg := fileConfig(t)
	require.NoError(t, Initialize(cfg))
	slog.Info("via default logger")
	require.NoError(t, Shutdown())

	content := readLog(t, cfg, MainLogFile)
	assert.Contains(t, content, "Logging initialized")
	assert.Contains(t, content, "via default logger")
}

func TestNewLogger_SinkInheritsTopLevelSettings(t *testing.T) {
	cfg := fileConfig(t)
	cfg.Format = "json"
	cfg.Level = "debug"
	cfg.File.Format = ""
	cfg.File.Level = ""

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	logger.Debug("inherited", "trip", "T-1")
	require.NoError(t, Shutdown())

	content := readLog(t, cfg, MainLogFile)
	assert.Contains(t, content, `"msg":"inherited"`)
	assert.Contains(t, content, `"trip":"T-1"`)
}

func TestNewLogger_NoSinks(t *testing.T) {
	cfg := fileConfig(t)
	cfg.File.Enabled = false
	cfg.Dir = filepath.Join(cfg.Dir, "unused")

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	logger.Error("dropped")

	assert.NoDirExists(t, cfg.Dir)
	assert.NoError(t, Shutdown())
}

func TestNewLogger_DedupCollapsesRepeatedWarnings(t *testing.T) {
	cfg := fileConfig(t)
	cfg.Dedup.Enabled = true
	cfg.Dedup.Window = time.Hour

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		logger.Warn("cache unavailable", "backend", "redis")
	}
	require.NoError(t, Shutdown())

	content := readLog(t, cfg, ErrorLogFile)
	assert.Equal(t, 2, strings.Count(content, "cache unavailable"))
	assert.Contains(t, content, "repeated_count=4")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	} {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}
