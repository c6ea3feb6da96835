package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strikeline/strikeline/internal/engine"
	"github.com/strikeline/strikeline/pkg/config"
	"github.com/strikeline/strikeline/pkg/daemon"
	"github.com/strikeline/strikeline/pkg/logger"
	"github.com/strikeline/strikeline/pkg/process"
	"github.com/strikeline/strikeline/pkg/types"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the screening daemon",
		Long: `Start Strikeline in daemon mode. It will screen the watchlist on a schedule,
admit the best spreads up to the position cap, and persist filled positions
until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon()
		},
	}
}

func runDaemon() error {
	// Create root context for the entire operation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := newLogger(cfg)

	// Two daemons on one store would clobber each other's writes
	lock := daemon.NewLock(projectRoot, log)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()

	// Create dependency factory and build dependencies
	factory := engine.NewDependencyFactory(cfg, log)
	deps, err := factory.CreateDefaults()
	if err != nil {
		return err
	}

	// Create the screener with properly injected dependencies
	s, err := engine.New(cfg, log, deps)
	if err != nil {
		return err
	}

	printInfo(fmt.Sprintf("Starting Strikeline v%s", version))
	printInfo(fmt.Sprintf("Using config: %s", configPath))

	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	// Watch the config file so a broken edit is caught while the daemon is
	// still running on the previous settings
	reloader := config.NewReloadManager(configPath, log)
	reloader.AddCallback(func(next *types.StrikelineConfig, err error) {
		if err != nil {
			printWarning(fmt.Sprintf("Config change ignored: %v", err))
			deps.Notifier.NotifyCycleFailure("config-reload", err)
			return
		}
		printInfo("Configuration changed on disk; restart to apply the new settings")
	})
	if err := reloader.StartWatching(); err != nil {
		log.Warn("Config watcher unavailable", logger.WithField("error", err))
	}

	// The process manager owns signals and shutdown ordering
	pm := process.NewManager(log)
	pm.RegisterShutdownHandler(func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Engine.ShutdownTimeout())
		defer shutdownCancel()

		printInfo("Shutting down gracefully...")
		if err := s.Stop(shutdownCtx); err != nil {
			printWarning(fmt.Sprintf("Shutdown error: %v", err))
			return
		}
		printSuccess("Strikeline stopped gracefully")
	})
	pm.RegisterShutdownHandler(func() {
		reloader.StopWatching()
	})
	pm.SetHeartbeat(func() {
		counts := s.Table().CountByStatus()
		log.Debug("Heartbeat",
			logger.WithField("pending", counts[types.StatusPending]),
			logger.WithField("accepted", counts[types.StatusAccepted]),
			logger.WithField("purchased", counts[types.StatusPurchased]))
	})

	pm.Start(ctx)

	// Block until a signal or context cancellation has run the shutdown
	<-pm.Done()
	return nil
}

// newLogger builds the daemon logger. An explicit -v flag wins over the
// configured level.
func newLogger(cfg *types.StrikelineConfig) logger.Logger {
	level := verbosity
	if cfg.Logging != nil {
		if cfg.Logging.Level != "" && !rootCmd.PersistentFlags().Changed("verbosity") {
			level = cfg.Logging.Level
		}
		if cfg.Logging.File != "" {
			return logger.CreateLoggerWithOutput(cfg.Logging.File, level)
		}
	}
	return logger.CreateLogger(level)
}
