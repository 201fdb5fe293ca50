// Package main implements the cmdtree daemon: a hierarchical command
// registry and dispatch service for chat platforms. Inbound messages
// arrive over NATS subjects and WebSocket gateways, resolve against
// per-client command trees, and execute on a bounded worker pool.
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

	"github.com/c360/cmdtree/admin"
	"github.com/c360/cmdtree/config"
	"github.com/c360/cmdtree/dispatch"
	natssource "github.com/c360/cmdtree/input/nats"
	wssource "github.com/c360/cmdtree/input/websocket"
	"github.com/c360/cmdtree/metric"
	"github.com/c360/cmdtree/natsclient"
	"github.com/c360/cmdtree/registry"
	"github.com/c360/cmdtree/service"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "cmdtree"
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

	// Run application with proper error handling
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := configureLogging(cliCfg, cfg)

	if cliCfg.Validate {
		slog.Info("Configuration is valid", "config_path", cliCfg.ConfigPath)
		return nil
	}

	slog.Info("Starting cmdtree (chat command registry and dispatch)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath,
		"instance", cfg.Service.InstanceID,
		"environment", cfg.Service.Environment)

	ctx := context.Background()
	metricsRegistry := metric.NewMetricsRegistry()

	natsClient, err := buildNATSClient(cfg, metricsRegistry)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}
	if err := connectToNATS(ctx, natsClient); err != nil {
		return err
	}
	defer func() { _ = natsClient.Close(ctx) }()

	directory := buildDirectory(logger, metricsRegistry)

	manager, err := buildServices(cfg, directory, natsClient, metricsRegistry, logger)
	if err != nil {
		return err
	}

	return runWithSignalHandling(ctx, manager, cliCfg.ShutdownTimeout)
}

// initializeCLI parses and validates flags, handling the version and help
// short circuits.
func initializeCLI() (*CLIConfig, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, true, nil
	}

	return cliCfg, false, nil
}

// loadConfig loads and validates configuration from the specified path.
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	loader.EnableValidation(true)
	cfg, err := loader.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// configureLogging builds the process logger. CLI flags win over the
// config file so a debug run never needs a config edit.
func configureLogging(cliCfg *CLIConfig, cfg *config.Config) *slog.Logger {
	level := cliCfg.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	format := cliCfg.LogFormat
	if format == "" {
		format = cfg.Logging.Format
	}

	logger := setupLogger(level, format)
	slog.SetDefault(logger)
	return logger
}

// buildNATSClient assembles the shared NATS client from the connection
// section of the config.
func buildNATSClient(cfg *config.Config, metricsRegistry *metric.MetricsRegistry) (*natsclient.Client, error) {
	url := "nats://localhost:4222"
	if len(cfg.NATS.URLs) > 0 {
		url = cfg.NATS.URLs[0]
	}

	opts := []natsclient.ClientOption{
		natsclient.WithName(cfg.Service.Name),
		natsclient.WithMetrics(metricsRegistry),
	}
	if cfg.NATS.MaxReconnects != 0 {
		opts = append(opts, natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects))
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
	if cfg.NATS.TLS.Enabled {
		opts = append(opts, natsclient.WithTLS(
			cfg.NATS.TLS.CertFile, cfg.NATS.TLS.KeyFile, cfg.NATS.TLS.CAFile))
	}

	return natsclient.NewClient(url, opts...)
}

// connectToNATS establishes the connection and waits for it to be ready.
func connectToNATS(ctx context.Context, natsClient *natsclient.Client) error {
	slog.Info("Connecting to NATS", "url", natsClient.URL())
	if err := natsClient.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := natsClient.WaitForConnection(connCtx); err != nil {
		return fmt.Errorf("NATS connection timeout: %w", err)
	}

	return nil
}

// buildDirectory creates the command tree directory. Every root the
// directory creates is seeded with the administration commands before
// the first invocation can resolve against it.
func buildDirectory(logger *slog.Logger, metricsRegistry *metric.MetricsRegistry) *registry.Directory {
	var dir *registry.Directory
	dir = registry.NewDirectory(
		registry.WithDirectoryLogger(logger),
		registry.WithDirectoryMetrics(registry.NewMetrics(metricsRegistry)),
		registry.WithRootSeed(func(client string, root *registry.Node) {
			if err := admin.Install(dir, root); err != nil {
				logger.Error("Failed to install administration commands",
					"client", client, "error", err)
				return
			}
			logger.Debug("Administration commands installed", "client", client)
		}),
	)
	return dir
}

// buildServices wires the dispatcher, the enabled sources, and the
// metrics server into the manager. Registration order is start order;
// sources register after the dispatcher so shutdown tears them down
// first.
func buildServices(
	cfg *config.Config,
	directory *registry.Directory,
	natsClient *natsclient.Client,
	metricsRegistry *metric.MetricsRegistry,
	logger *slog.Logger,
) (*service.Manager, error) {
	manager := service.NewManager(logger)

	dispatcher, err := dispatch.New(dispatch.Deps{
		Config:          cfg.Dispatcher,
		Directory:       directory,
		MetricsRegistry: metricsRegistry,
		Logger:          logger.With("component", "dispatch"),
	})
	if err != nil {
		return nil, fmt.Errorf("create dispatcher: %w", err)
	}
	if err := manager.Add(dispatcher); err != nil {
		return nil, fmt.Errorf("register dispatcher: %w", err)
	}

	if cfg.Sources.NATS.Enabled {
		src, err := natssource.New(natssource.Deps{
			Config:          cfg.Sources.NATS,
			Client:          natsClient,
			Submitter:       dispatcher,
			MetricsRegistry: metricsRegistry,
			Logger:          logger.With("component", "nats_source"),
		})
		if err != nil {
			return nil, fmt.Errorf("create NATS source: %w", err)
		}
		if err := manager.Add(src); err != nil {
			return nil, fmt.Errorf("register NATS source: %w", err)
		}
	} else {
		slog.Info("NATS source disabled")
	}

	if cfg.Sources.WebSocket.Enabled {
		src, err := wssource.New(wssource.Deps{
			Config:          cfg.Sources.WebSocket,
			Security:        cfg.Security,
			Submitter:       dispatcher,
			MetricsRegistry: metricsRegistry,
			Logger:          logger.With("component", "websocket_source"),
		})
		if err != nil {
			return nil, fmt.Errorf("create WebSocket source: %w", err)
		}
		if err := manager.Add(src); err != nil {
			return nil, fmt.Errorf("register WebSocket source: %w", err)
		}
	} else {
		slog.Info("WebSocket source disabled")
	}

	if !cfg.Sources.NATS.Enabled && !cfg.Sources.WebSocket.Enabled {
		slog.Warn("No invocation sources enabled; the daemon will accept no messages")
	}

	if cfg.Metrics.Enabled {
		svc, err := service.NewMetrics(cfg.Metrics, cfg.Security, metricsRegistry,
			service.WithLogger(logger.With("component", "metrics")))
		if err != nil {
			return nil, fmt.Errorf("create metrics server: %w", err)
		}
		// /health serves the aggregate of every registered service.
		svc.SetHealthSource(manager.Health)
		if err := manager.Add(svc); err != nil {
			return nil, fmt.Errorf("register metrics server: %w", err)
		}
	}

	return manager, nil
}

// runWithSignalHandling starts services and handles shutdown signals
func runWithSignalHandling(ctx context.Context, manager *service.Manager, shutdownTimeout time.Duration) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := manager.StartAll(signalCtx); err != nil {
		// Partially started services still need a teardown.
		if stopErr := manager.StopAll(shutdownTimeout); stopErr != nil {
			slog.Error("Teardown after failed start reported errors", "error", stopErr)
		}
		return fmt.Errorf("start services: %w", err)
	}
	slog.Info("cmdtree started", "services", manager.Services())

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	if err := manager.StopAll(shutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("cmdtree shutdown complete")
	return nil
}
