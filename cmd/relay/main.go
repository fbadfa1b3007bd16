// Package main is the entry point for the relay.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vyrodovalexey/avarelay/internal/auth/mtls"
	"github.com/vyrodovalexey/avarelay/internal/config"
	"github.com/vyrodovalexey/avarelay/internal/health"
	"github.com/vyrodovalexey/avarelay/internal/observability"
	"github.com/vyrodovalexey/avarelay/internal/relay"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadAndValidateConfig(flags.configPath, logger)
	app := initApplication(cfg, logger)

	runRelay(app, flags.configPath, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("RELAY_CONFIG_PATH", "configs/relay.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("RELAY_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("RELAY_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("avarelay version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadAndValidateConfig loads and validates the configuration.
func loadAndValidateConfig(configPath string, logger observability.Logger) *config.RelayConfig {
	logger.Info("starting avarelay",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	if err := config.ValidateConfig(cfg); err != nil {
		logger.Fatal("invalid configuration", observability.Error(err))
	}

	logger.Info("configuration loaded",
		observability.String("name", cfg.Metadata.Name),
		observability.String("encoding", string(cfg.Spec.ResponseEncoding())),
		observability.Int("rules", len(cfg.Spec.Rules)),
	)

	return cfg
}

// application holds all application components.
type application struct {
	host          *relay.Host
	server        *relay.Server
	healthChecker *health.Checker
	metrics       *observability.Metrics
	tracer        *observability.Tracer
	config        *config.RelayConfig
}

// initApplication initializes all application components.
func initApplication(cfg *config.RelayConfig, logger observability.Logger) *application {
	metrics := observability.NewMetrics("relay")
	metrics.SetBuildInfo(version, gitCommit, buildTime)

	tracer := initTracer(cfg, logger)
	healthChecker := health.NewChecker(version)

	host, err := relay.NewHost(cfg,
		relay.WithHostLogger(logger),
		relay.WithHostMetrics(metrics),
		relay.WithHostTracer(tracer),
	)
	if err != nil {
		logger.Fatal("failed to build pipeline", observability.Error(err))
	}

	adapter := relay.NewAdapter(host.Handler(), cfg.Spec.ResponseEncoding(),
		relay.WithAdapterLogger(logger),
		relay.WithMaxBodySize(maxBodySize(cfg)),
	)

	server := relay.NewServer(
		relay.ServerConfigFromSpec(cfg.Spec.Server, initServerTLS(cfg, logger)),
		adapter,
		logger,
	)

	return &application{
		host:          host,
		server:        server,
		healthChecker: healthChecker,
		metrics:       metrics,
		tracer:        tracer,
		config:        cfg,
	}
}

// maxBodySize returns the configured request body cap, applying the
// default.
func maxBodySize(cfg *config.RelayConfig) int64 {
	if cfg.Spec.Server.MaxRequestBodySize > 0 {
		return cfg.Spec.Server.MaxRequestBodySize
	}
	return config.DefaultMaxRequestBodySize
}

// initServerTLS builds the listener TLS configuration, or nil when
// TLS is disabled.
func initServerTLS(cfg *config.RelayConfig, logger observability.Logger) *tls.Config {
	tc := cfg.Spec.Server.TLS
	if tc == nil || !tc.Enabled {
		return nil
	}

	tlsConfig, err := mtls.ServerTLSConfig(tc.CertFile, tc.KeyFile, tc.CAFile, tc.RequireClientCert)
	if err != nil {
		logger.Fatal("failed to build TLS configuration", observability.Error(err))
	}
	return tlsConfig
}

// initTracer initializes the tracer.
func initTracer(cfg *config.RelayConfig, logger observability.Logger) *observability.Tracer {
	tracerCfg := observability.TracerConfig{
		ServiceName:  "avarelay",
		Enabled:      false,
		SamplingRate: 1.0,
	}

	if cfg.Spec.Observability != nil && cfg.Spec.Observability.Tracing != nil {
		t := cfg.Spec.Observability.Tracing
		tracerCfg.Enabled = t.Enabled
		tracerCfg.SamplingRate = t.SamplingRate
		tracerCfg.OTLPEndpoint = t.OTLPEndpoint
		if t.ServiceName != "" {
			tracerCfg.ServiceName = t.ServiceName
		}
	}

	tracer, err := observability.NewTracer(tracerCfg)
	if err != nil {
		logger.Fatal("failed to initialize tracer", observability.Error(err))
	}

	return tracer
}

// runRelay runs the relay and handles shutdown.
func runRelay(app *application, configPath string, logger observability.Logger) {
	ctx := context.Background()

	if err := app.server.Start(ctx); err != nil {
		logger.Fatal("failed to start relay server", observability.Error(err))
	}

	startMetricsServerIfEnabled(app, logger)
	watcher := startConfigWatcher(app, configPath, logger)

	waitForShutdown(app, watcher, logger)
}

// startMetricsServerIfEnabled starts the metrics server if enabled.
func startMetricsServerIfEnabled(app *application, logger observability.Logger) {
	obs := app.config.Spec.Observability
	if obs == nil || obs.Metrics == nil || !obs.Metrics.Enabled {
		return
	}

	metricsPath := obs.Metrics.Path
	if metricsPath == "" {
		metricsPath = config.DefaultMetricsPath
	}

	metricsPort := obs.Metrics.Port
	if metricsPort == 0 {
		metricsPort = config.DefaultMetricsPort
	}

	go startMetricsServer(metricsPort, metricsPath, app.metrics, app.healthChecker, logger)
}

// startConfigWatcher starts the configuration watcher.
func startConfigWatcher(
	app *application,
	configPath string,
	logger observability.Logger,
) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, func(newCfg *config.RelayConfig) {
		logger.Info("configuration changed, reloading")
		if reloadErr := app.host.Reload(newCfg); reloadErr != nil {
			logger.Error("failed to reload configuration", observability.Error(reloadErr))
		}
	}, config.WithLogger(logger))

	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(context.Background()); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
	}

	return watcher
}

// waitForShutdown waits for a shutdown signal and performs graceful
// shutdown.
func waitForShutdown(app *application, watcher *config.Watcher, logger observability.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	app.healthChecker.SetDraining(true)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(app.config))
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}

	if err := app.server.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop relay server gracefully", observability.Error(err))
	}

	app.host.Close()

	if err := app.tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	logger.Info("relay stopped")
}

// shutdownTimeout returns the configured graceful shutdown window.
func shutdownTimeout(cfg *config.RelayConfig) time.Duration {
	if cfg.Spec.Server.ShutdownTimeout > 0 {
		return cfg.Spec.Server.ShutdownTimeout.Duration()
	}
	return config.DefaultShutdownTimeout
}

// startMetricsServer starts the metrics HTTP server.
func startMetricsServer(
	port int,
	path string,
	metrics *observability.Metrics,
	healthChecker *health.Checker,
	logger observability.Logger,
) {
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())
	mux.HandleFunc("/health", healthChecker.HealthHandler())
	mux.HandleFunc("/ready", healthChecker.ReadinessHandler())
	mux.HandleFunc("/live", healthChecker.LivenessHandler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info("starting metrics server",
		observability.String("address", addr),
		observability.String("metrics_path", path),
	)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server error", observability.Error(err))
	}
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
