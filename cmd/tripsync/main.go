package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/syntrixbase/tripsync/internal/config"
	"github.com/syntrixbase/tripsync/internal/logging"
	"github.com/syntrixbase/tripsync/internal/services"
	svcconfig "github.com/syntrixbase/tripsync/internal/services/config"
)

const initTimeout = 30 * time.Second

func main() {
	configDir := flag.String("config-dir", "configs", "Directory holding config.yml and config.local.yml")
	dataDir := flag.String("data-dir", "", "Base directory for relative paths (defaults to the parent of config-dir)")
	standalone := flag.Bool("standalone", false, "Force standalone mode (in-memory bus, no external broker)")
	flag.Parse()

	if *standalone {
		os.Setenv("TRIPSYNC_DEPLOYMENT_MODE", string(svcconfig.ModeStandalone))
	}

	if err := run(*configDir, *dataDir); err != nil {
		fmt.Fprintf(os.Stderr, "tripsync: %v\n", err)
		os.Exit(1)
	}
}

func run(configDir, dataDir string) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig(configDir, dataDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logging.Initialize(cfg.Logging); err != nil {
		return err
	}
	defer logging.Shutdown()

	slog.Info("Starting tripsync",
		"mode", cfg.Deployment.Mode,
		"store", cfg.Store.Backend,
		"cache", cfg.Cache.Backend,
	)

	// 2. Initialize Service Manager
	mgr := services.NewManager(cfg, slog.Default())

	initCtx, initCancel := context.WithTimeout(context.Background(), initTimeout)
	defer initCancel()
	if err := mgr.Init(initCtx); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	// 3. Start Services
	if err := mgr.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start services: %w", err)
	}

	// 4. Wait for a signal or a failed background loop
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case sig := <-quit:
		slog.Info("Shutting down", "signal", sig.String())
	case <-mgr.Stopped():
		runErr = mgr.Err()
		slog.Error("Background loop stopped, shutting down", "error", runErr)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := mgr.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown finished with errors", "error", err)
		if runErr == nil {
			runErr = err
		}
	}

	slog.Info("All services stopped")
	return runErr
}
