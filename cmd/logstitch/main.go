// Package main implements the entry point for the logstitch service.
// Logstitch rejoins multiline log records that were split across separate
// delivery events before reaching the pipeline.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/logstitch/component"
	"github.com/c360/logstitch/config"
	"github.com/c360/logstitch/health"
	"github.com/c360/logstitch/metric"
	"github.com/c360/logstitch/natsclient"
	concatproc "github.com/c360/logstitch/processor/concat"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "logstitch"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// Parse and validate CLI flags
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	// Load and validate configuration
	cfg, err := config.NewLoader().LoadFile(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		// Construct the processor without dependencies to exercise its own
		// configuration validation (key, matching mode, ports)
		if _, err := concatproc.NewProcessor(cfg.Processor, component.Dependencies{Logger: logger}); err != nil {
			return fmt.Errorf("invalid processor configuration: %w", err)
		}
		slog.Info("Configuration is valid")
		return nil
	}

	// Setup core infrastructure
	metricsRegistry := metric.NewMetricsRegistry()

	natsClient, err := buildNATSClient(cfg, metricsRegistry)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}

	connCtx, connCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer connCancel()

	slog.Info("Connecting to NATS", "urls", cfg.NATS.URLs)
	if err := natsClient.Connect(connCtx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer func() {
		if err := natsClient.Close(context.Background()); err != nil {
			slog.Error("Error closing NATS client", "error", err)
		}
	}()

	// Create the concat processor
	deps := component.Dependencies{
		NATSClient:      natsClient,
		MetricsRegistry: metricsRegistry,
		Logger:          logger,
	}

	discoverable, err := concatproc.NewProcessor(cfg.Processor, deps)
	if err != nil {
		return fmt.Errorf("create concat processor: %w", err)
	}

	processor, ok := component.AsLifecycleComponent(discoverable)
	if !ok {
		return fmt.Errorf("concat processor does not implement lifecycle")
	}

	if err := processor.Initialize(); err != nil {
		return fmt.Errorf("initialize concat processor: %w", err)
	}

	// Run with signal handling
	return runWithSignalHandling(cfg, processor, natsClient, metricsRegistry, cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting logstitch (multiline log concatenation)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// buildNATSClient creates the NATS client from configuration
func buildNATSClient(cfg *config.Config, metricsRegistry *metric.MetricsRegistry) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithName(cfg.Service.Name),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithCoreMetrics(metricsRegistry.CoreMetrics()),
	}

	if cfg.NATS.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(cfg.NATS.ReconnectWait))
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}

	return natsclient.NewClient(cfg.NATS.URLs[0], opts...)
}

// runWithSignalHandling starts the processor and metrics server, then waits
// for a shutdown signal.
func runWithSignalHandling(
	cfg *config.Config,
	processor component.LifecycleComponent,
	natsClient *natsclient.Client,
	metricsRegistry *metric.MetricsRegistry,
	shutdownTimeout time.Duration,
) error {
	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	var group errgroup.Group

	monitor := health.NewMonitor()

	var metricsServer *metric.Server
	if cfg.Metrics.Enabled {
		metricsServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry)
		metricsServer.SetHealthHandler(monitor.Handler(cfg.Service.Name))
		slog.Info("Starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		group.Go(metricsServer.Start)
	}

	if err := processor.Start(signalCtx); err != nil {
		return fmt.Errorf("start concat processor: %w", err)
	}
	slog.Info("Logstitch started successfully")

	group.Go(func() error {
		refreshHealth(signalCtx, monitor, processor, natsClient)
		return nil
	})

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	// Stop the processor first so buffered streams drain before the
	// connection goes away
	if err := processor.Stop(shutdownTimeout); err != nil {
		slog.Error("Error stopping concat processor", "error", err)
	}

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			slog.Error("Error stopping metrics server", "error", err)
		}
	}

	if err := group.Wait(); err != nil {
		return fmt.Errorf("metrics server failed: %w", err)
	}

	slog.Info("Logstitch shutdown complete")
	return nil
}

// refreshHealth periodically feeds component state into the health monitor
// until the context is cancelled.
func refreshHealth(
	ctx context.Context,
	monitor *health.Monitor,
	processor component.LifecycleComponent,
	natsClient *natsclient.Client,
) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	update := func() {
		monitor.Update(processor.Meta().Name, health.FromComponentHealth(processor.Meta().Name, processor.Health()))

		if natsClient.IsHealthy() {
			monitor.UpdateHealthy("nats", "connected")
		} else {
			monitor.UpdateUnhealthy("nats", natsClient.Status().String())
		}
	}

	update()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}
