// Package main is the entry point for the FX gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/avafx/internal/config"
	"github.com/vyrodovalexey/avafx/internal/observability"
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

	cfg, err := config.LoadAndValidate(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting fxgateway",
		observability.String("version", version),
		observability.String("config", flags.configPath),
		observability.String("name", cfg.Metadata.Name),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", observability.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}

	if err := app.run(ctx, flags.configPath); err != nil {
		logger.Error("fxgateway stopped with error", observability.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}

	logger.Info("fxgateway stopped")
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("FXGATEWAY_CONFIG_PATH", "configs/fxgateway.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", os.Getenv("FXGATEWAY_LOG_LEVEL"),
		"Log level (debug, info, warn, error); overrides the configuration")
	logFormat := flag.String("log-format", os.Getenv("FXGATEWAY_LOG_FORMAT"),
		"Log format (json, console); overrides the configuration")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("fxgateway version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger builds the process logger from configuration and flags.
func initLogger(cfg *config.FXGatewayConfig, flags cliFlags) (observability.Logger, error) {
	logCfg := observability.LogConfig{
		Level:   cfg.Spec.Observability.Logging.Level,
		Format:  cfg.Spec.Observability.Logging.Format,
		Output:  cfg.Spec.Observability.Logging.Output,
		Service: cfg.Spec.Observability.Tracing.ServiceName,
	}
	if flags.logLevel != "" {
		logCfg.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		logCfg.Format = flags.logFormat
	}

	logger, err := observability.NewLogger(logCfg)
	if err != nil {
		return nil, err
	}
	return logger, nil
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
