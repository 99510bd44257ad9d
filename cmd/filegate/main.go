package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/filegate/internal/api"
	"github.com/marmos91/filegate/internal/logger"
	"github.com/marmos91/filegate/pkg/commit"
	"github.com/marmos91/filegate/pkg/config"
	"github.com/marmos91/filegate/pkg/dataset"
	"github.com/marmos91/filegate/pkg/location"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: XDG config dir, then env)")
	logLevel := flag.String("log-level", "", "Log level override (DEBUG, INFO, WARN, ERROR)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	logger.SetLevel(cfg.Logging.Level)

	fmt.Println("Filegate - Location & Signed-Access Service")
	logger.Info("Log level set to: %s", cfg.Logging.Level)
	logger.Info("Storage backend: %s (staging=%s, persistent=%s)",
		cfg.Storage.Type, cfg.Storage.StagingBucket, cfg.Storage.PersistentBucket)
	logger.Info("Record store: %s", cfg.Records.Type)
	logger.Info("Access mode: %s", cfg.Access.Mode)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsResult := config.InitializeMetrics(cfg)

	backend, err := config.CreateObjectStore(ctx, &cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to create object store: %v", err)
	}

	repo, err := config.CreateRecordStore(ctx, &cfg.Records)
	if err != nil {
		log.Fatalf("Failed to create record store: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("Record store close error: %v", err)
		}
	}()

	accessSvc, err := config.CreateAccessService(ctx, cfg, backend)
	if err != nil {
		log.Fatalf("Failed to create access service: %v", err)
	}

	locationSvc, err := location.NewService(location.ServiceConfig{
		Access:        accessSvc,
		Backend:       backend,
		Repository:    repo,
		Scheme:        cfg.Storage.Scheme,
		StagingBucket: cfg.Storage.StagingBucket,
	})
	if err != nil {
		log.Fatalf("Failed to create location service: %v", err)
	}

	workflow, err := commit.NewWorkflow(commit.WorkflowConfig{
		Backend:          backend,
		Repository:       repo,
		Scheme:           cfg.Storage.Scheme,
		StagingBucket:    cfg.Storage.StagingBucket,
		PersistentBucket: cfg.Storage.PersistentBucket,
	})
	if err != nil {
		log.Fatalf("Failed to create commit workflow: %v", err)
	}

	builder, err := dataset.NewBuilder(dataset.BuilderConfig{
		Access:        accessSvc,
		Backend:       backend,
		Registry:      dataset.RecordRegistry{Repository: repo},
		Scheme:        cfg.Storage.Scheme,
		StagingBucket: cfg.Storage.StagingBucket,
	})
	if err != nil {
		log.Fatalf("Failed to create dataset builder: %v", err)
	}

	srv := api.NewServer(api.ServerConfig{
		Port:            cfg.Server.Port,
		RequestTimeout:  cfg.Server.RequestTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		RateLimitRPS:    cfg.Server.RateLimitRPS,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
	}, api.Dependencies{
		Location:   locationSvc,
		Commit:     workflow,
		Dataset:    builder,
		Repository: repo,
		Mode:       cfg.Access.Mode,
		Metrics:    metricsResult.API,
	})

	// Start servers in background
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Start(ctx)
	}()

	if metricsResult.Server != nil {
		go func() {
			if err := metricsResult.Server.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running on port %d. Press Ctrl+C to stop.", cfg.Server.Port)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error: %v", err)
			os.Exit(1)
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error: %v", err)
			os.Exit(1)
		}
		logger.Info("Server stopped")
	}
}
