package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"vibehub/gateway/pkg/admin"
	"vibehub/gateway/pkg/config"
	"vibehub/gateway/pkg/history"
	"vibehub/gateway/pkg/proxy"
	"vibehub/gateway/pkg/stats"
	"vibehub/gateway/pkg/telemetry/metrics"
	"vibehub/gateway/pkg/updater"
)

// Data directory file names.
const (
	gatewayConfigFile = "gateway_config.json"
	gatewayStatsFile  = "gateway_stats.json"
)

var runFlags struct {
	dataDir string
	dryRun  bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gateway",
	Long: `Start the gateway proxy and management servers.

The proxy listens on the port from the gateway document and forwards
LLM API requests to the configured providers with ordered failover.
The management API, metrics endpoint and provider event stream are
served on a separate loopback address.

Examples:
  # Start with default settings
  vibehub run

  # Start with a custom settings file
  vibehub run --settings /etc/vibehub/settings.yaml

  # Override the data directory
  vibehub run --data-dir /var/lib/vibehub

  # Validate settings without starting
  vibehub run --dry-run`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.dataDir, "data-dir", "", "override data directory")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate configuration without starting")
}

func runGateway(cmd *cobra.Command, args []string) error {
	settings, err := config.LoadSettings(settingsFile)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	if runFlags.dataDir != "" {
		settings.DataDir = runFlags.dataDir
	}
	if verbose {
		settings.Telemetry.Logging.Level = "debug"
	}

	setupLogging(settings.Telemetry.Logging)

	if err := os.MkdirAll(settings.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := config.NewStore(filepath.Join(settings.DataDir, gatewayConfigFile))
	if err != nil {
		return fmt.Errorf("failed to load gateway config: %w", err)
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Vibehub Gateway v%s\n", Version)
	fmt.Printf("Data directory: %s\n", settings.DataDir)

	statsManager := stats.NewManager(filepath.Join(settings.DataDir, gatewayStatsFile))

	var collector *metrics.Collector
	if settings.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(nil)
	}

	var archive *history.Archive
	var retention *history.Scheduler
	if settings.History.Enabled {
		dbPath := settings.History.Path
		if !filepath.IsAbs(dbPath) {
			dbPath = filepath.Join(settings.DataDir, dbPath)
		}
		archive, err = history.NewArchive(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open history archive: %w", err)
		}
		defer archive.Close()
		retention = history.NewScheduler(archive, settings.History.PruneSchedule, settings.History.RetentionDays)
		fmt.Printf("✓ Request history archive: %s\n", dbPath)
	}

	var updates *updater.Updater
	if settings.Updates.Enabled {
		updates = updater.New(settings.Updates.ReleaseURL, Version)
	}

	adminServer := admin.NewServer(settings.Admin.ListenAddress, store, statsManager, admin.Options{
		Archive:     archive,
		Updates:     updates,
		Metrics:     collector,
		MetricsPath: settings.Telemetry.Metrics.Path,
	})

	recorders := []proxy.Recorder{statsManager}
	if archive != nil {
		recorders = append(recorders, archive)
	}

	proxyServer := proxy.NewServer(store, proxy.Options{
		Notifier:       adminServer.Broker(),
		Recorder:       proxy.MultiRecorder(recorders...),
		Metrics:        collector,
		AttemptTimeout: settings.Upstream.AttemptTimeout,
	})

	watcher := config.NewWatcher(store, config.DefaultDebounceInterval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if retention != nil {
		if err := retention.Start(ctx); err != nil {
			slog.Warn("failed to start history retention scheduler", "error", err)
		} else {
			defer retention.Stop()
		}
	}

	errChan := make(chan error, 3)

	go func() {
		if err := watcher.Watch(ctx); err != nil {
			errChan <- fmt.Errorf("config watcher error: %w", err)
		}
	}()
	go func() {
		if err := adminServer.Start(ctx); err != nil {
			errChan <- fmt.Errorf("admin server error: %w", err)
		}
	}()
	go func() {
		if err := proxyServer.Start(ctx); err != nil {
			errChan <- fmt.Errorf("proxy server error: %w", err)
		}
	}()

	cfg := store.Get()
	fmt.Printf("✓ Proxy listening on 0.0.0.0:%d (%d providers)\n", cfg.Port, len(cfg.Providers))
	fmt.Printf("✓ Management API on http://%s\n", settings.Admin.ListenAddress)
	if settings.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", settings.Admin.ListenAddress, settings.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	select {
	case err := <-errChan:
		stop()
		return err
	case <-ctx.Done():
		fmt.Println("\nShutting down gracefully...")
		if err := proxyServer.Shutdown(context.Background()); err != nil {
			slog.Error("proxy shutdown failed", "error", err)
		}
		if err := adminServer.Shutdown(); err != nil {
			slog.Error("admin shutdown failed", "error", err)
		}
		fmt.Println("✓ Gateway stopped")
		return nil
	}
}

// setupLogging installs the process-wide slog handler per settings.
func setupLogging(cfg config.LoggingSettings) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
