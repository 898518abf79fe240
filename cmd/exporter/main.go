package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/opscost/azure-cost-exporter/internal/azure"
	"github.com/opscost/azure-cost-exporter/internal/config"
	"github.com/opscost/azure-cost-exporter/internal/exporter"
	"github.com/opscost/azure-cost-exporter/internal/logger"
	"github.com/opscost/azure-cost-exporter/internal/server"
	"github.com/opscost/azure-cost-exporter/internal/version"
)

const (
	// DefaultShutdownTimeout is the maximum time to wait for graceful shutdown
	DefaultShutdownTimeout = 30 * time.Second
)

var (
	configPath = flag.String("config", "config.yaml", "Path to configuration file")
	secretPath = flag.String("secret", "secret.yaml", "Path to per-tenant credential file")
)

func main() {
	flag.Parse()

	// Load configuration first (need log level from config)
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logger
	logger := logger.New(cfg.LogLevel)
	logger.Info("Azure Cost Exporter starting",
		"version", version.Version,
		"git_commit", version.GitCommit,
		"config_path", *configPath)

	logger.Info("Configuration loaded successfully",
		"target_accounts", len(cfg.TargetAccounts),
		"polling_interval_seconds", cfg.PollingInterval,
		"exporter_port", cfg.ExporterPort,
		"grouping_enabled", cfg.GroupBy.Enabled,
		"api_timeout_seconds", cfg.APITimeout)

	if cfg.GroupBy.Enabled {
		logger.Info("Grouping configuration",
			"dimensions", len(cfg.GroupBy.Groups),
			"merge_minor_cost", cfg.GroupBy.MergeMinorCost.Enabled)
	}

	// A missing secret file is an onboarding moment: generate a skeleton
	// keyed by the configured tenants and stop.
	if _, err := os.Stat(*secretPath); errors.Is(err, os.ErrNotExist) {
		logger.Warn("Secret file not found, generating template", "path", *secretPath)
		if err := config.WriteSecretTemplate(*secretPath, cfg); err != nil {
			logger.Error("Failed to write secret template", "error", err)
			os.Exit(1)
		}
		logger.Info("Secret template written, fill in the credentials and restart", "path", *secretPath)
		os.Exit(1)
	}

	secrets, err := config.LoadSecrets(*secretPath)
	if err != nil {
		logger.Error("Failed to load secret file", "error", err)
		os.Exit(1)
	}
	if err := config.ValidateSecrets(cfg, secrets); err != nil {
		logger.Error("Secret file validation failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Credentials loaded", "tenants", len(secrets))

	// All metrics live in a dedicated registry so the scrape endpoint
	// exposes exactly what the exporter registered.
	registry := prometheus.NewRegistry()

	buildInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "azure_cost_exporter_build_info",
		Help: "Build information of the running exporter.",
	}, []string{"version", "git_commit", "build_date", "go_version"})
	info := version.Info()
	buildInfo.WithLabelValues(info["version"], info["git_commit"], info["build_date"], info["go_version"]).Set(1)
	registry.MustRegister(buildInfo)

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sink := exporter.NewGaugeSink(registry, cfg)
	opsMetrics := exporter.NewOpsMetrics(registry)

	// Create Azure client and the fetch engine
	logger.Info("Initializing Azure Cost Management client")
	azureClient := azure.NewClient(cfg, logger)
	engine := exporter.New(cfg, secrets, azureClient, sink, opsMetrics, logger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the polling loop
	logger.Info("Starting polling loop", "interval_seconds", cfg.PollingInterval)
	engineErrors := make(chan error, 1)
	go func() {
		engineErrors <- engine.Run(ctx, time.Duration(cfg.PollingInterval)*time.Second)
	}()

	// Create and start HTTP server
	logger.Info("Creating HTTP server", "port", cfg.ExporterPort)
	srv := server.NewServer(cfg, engine, registry, logger)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	// Wait for interrupt signal, a server error, or a fatal engine error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("Server error", "error", err)
		os.Exit(1)

	case err := <-engineErrors:
		if err != nil {
			logger.Error("Polling loop failed", "error", err)
			os.Exit(1)
		}
		logger.Info("Polling loop stopped")

	case sig := <-shutdown:
		logger.Info("Received shutdown signal, starting graceful shutdown", "signal", sig.String())

		// Stop the polling loop
		cancel()

		// Shutdown server with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during server shutdown", "error", err)
			os.Exit(1)
		}

		logger.Info("Server stopped gracefully")
	}
}
