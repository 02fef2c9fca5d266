package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"sendgate/internal/config"
	"sendgate/internal/constants"
	"sendgate/internal/database"
	apperrors "sendgate/internal/errors"
	"sendgate/internal/metrics"
	"sendgate/internal/models"
	"sendgate/internal/retry"
	"sendgate/internal/service"
	"sendgate/internal/tracing"
	"sendgate/pkg/adapters"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("SendGate %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting SendGate")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			logger.SetLevel(logrus.InfoLevel)
		} else {
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	tracingManager := tracing.NewTracingManager(tracing.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)

	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Open the database with exponential backoff so a slow disk mount at
	// boot does not kill the daemon
	var db *database.Database
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
		Jitter:       true,
	})
	errLog := apperrors.FromLogrus(logger)
	err = backoff.Retry(ctx, func() error {
		var openErr error
		db, openErr = database.New(cfg.Database.Path)
		if openErr != nil {
			errLog.LogWarn(openErr, "Database open failed, retrying")
		}
		return openErr
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	registry := metrics.NewRegistry()
	limiter := service.NewRateLimiter(rateLimitsFromConfig(cfg))
	gate := service.NewComplianceGate(db, logger)
	adapterRegistry := buildAdapterRegistry(cfg, logger)
	pipeline := service.NewRetryPipeline(db, db, db, adapterRegistry, gate, limiter, registry, logger)
	dispatcher := service.NewDispatchRouter(db, db, gate, limiter, pipeline, adapterRegistry, registry, cfg.Dispatch.StalenessSkipAlert, logger)
	approvalSvc := service.NewApprovalService(db, db, logger)

	scheduler := service.NewDispatchScheduler(dispatcher, pipeline,
		cfg.Dispatch.BatchSize, cfg.Dispatch.IntervalMinutes, cfg.Dispatch.RetryIntervalMinutes, logger)

	server := NewServer(approvalSvc, dispatcher, gate, db, registry, cfg.Dispatch.BatchSize, cfg.Server.Port, logger)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Start(ctx)
	}()

	serverErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		errLog.LogError(err, "Admin server failed")
	}

	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownSec*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Server shutdown failed")
	}

	wg.Wait()
	logger.Info("SendGate stopped")
	return nil
}

func rateLimitsFromConfig(cfg *models.Config) map[models.Channel]models.RateLimitConfig {
	limits := make(map[models.Channel]models.RateLimitConfig, len(cfg.RateLimits))
	for _, rl := range cfg.RateLimits {
		limits[models.Channel(rl.Channel)] = models.RateLimitConfig{
			PerHour:  rl.PerHour,
			PerDay:   rl.PerDay,
			MinDelay: time.Duration(rl.MinDelaySeconds) * time.Second,
		}
	}
	return limits
}

func buildAdapterRegistry(cfg *models.Config, logger *logrus.Logger) *service.AdapterRegistry {
	registry := service.NewAdapterRegistry(logger)
	client := &http.Client{Timeout: constants.DefaultAdapterTimeoutSec * time.Second}
	for _, ad := range cfg.Adapters {
		registry.Register(models.Channel(ad.Channel), adapters.NewWebhookAdapter(ad.URL, ad.Secret, client))
		logger.WithFields(logrus.Fields{
			"channel": ad.Channel,
			"url":     ad.URL,
		}).Info("Registered channel adapter")
	}
	return registry
}
