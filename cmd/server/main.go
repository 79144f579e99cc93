// Package main provides the entry point for the submission service API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openscholar/submission-service/internal/advisory"
	"github.com/openscholar/submission-service/internal/auth"
	"github.com/openscholar/submission-service/internal/config"
	"github.com/openscholar/submission-service/internal/database"
	"github.com/openscholar/submission-service/internal/lifecycle"
	"github.com/openscholar/submission-service/internal/observability"
	"github.com/openscholar/submission-service/internal/outbox"
	"github.com/openscholar/submission-service/internal/payment"
	"github.com/openscholar/submission-service/internal/repository"
	httpserver "github.com/openscholar/submission-service/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("submission-service server starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Create repositories.
	paperRepo := repository.NewPgPaperRepository(db)
	userRepo := repository.NewPgUserRepository(db)

	// Token verification.
	verifier, err := auth.NewJWTVerifier(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.Audience)
	if err != nil {
		return fmt.Errorf("create token verifier: %w", err)
	}

	// Prometheus metrics.
	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics("submission_service")
	}

	// Advisory manuscript screening, if enabled.
	var assessor advisory.Assessor
	if cfg.Advisory.Enabled {
		assessor, err = advisory.NewAssessor(advisory.FactoryConfig{
			Provider:       cfg.Advisory.Provider,
			Temperature:    cfg.Advisory.Temperature,
			Timeout:        cfg.Advisory.Timeout,
			MaxRetries:     cfg.Advisory.MaxRetries,
			RateLimitRPS:   cfg.Advisory.RateLimitRPS,
			RateLimitBurst: cfg.Advisory.RateLimitBurst,
			OpenAI: advisory.OpenAIConfig{
				APIKey:  cfg.Advisory.OpenAI.APIKey,
				Model:   cfg.Advisory.OpenAI.Model,
				BaseURL: cfg.Advisory.OpenAI.BaseURL,
			},
			Anthropic: advisory.AnthropicConfig{
				APIKey:  cfg.Advisory.Anthropic.APIKey,
				Model:   cfg.Advisory.Anthropic.Model,
				BaseURL: cfg.Advisory.Anthropic.BaseURL,
			},
		})
		if err != nil {
			return fmt.Errorf("create advisory assessor: %w", err)
		}
		logger.Info().Str("provider", cfg.Advisory.Provider).Msg("advisory screening enabled")
	} else {
		logger.Info().Msg("advisory screening disabled")
	}

	// Create the HTTP REST API server.
	httpCfg := httpserver.Config{
		Address:                 cfg.Server.HTTPAddress(),
		ReadTimeout:             cfg.Server.ReadTimeout,
		WriteTimeout:            cfg.Server.WriteTimeout,
		IdleTimeout:             2 * time.Minute,
		ShutdownTimeout:         cfg.Server.ShutdownTimeout,
		MaxFileSize:             cfg.Uploads.MaxFileSize,
		FeeAmount:               cfg.Payment.FeeAmount,
		FeeCurrency:             cfg.Payment.Currency,
		AdvisoryTimeout:         cfg.Advisory.Timeout,
		AdvisoryMaxExcerptChars: cfg.Advisory.MaxExcerptChars,
	}

	httpSrv := httpserver.NewServer(httpCfg, httpserver.Dependencies{
		Papers:   paperRepo,
		Users:    userRepo,
		Transact: httpserver.NewPgTransactor(db),
		Health:   db,
		Engine:   lifecycle.NewEngine(cfg.Payment.Window),
		Verifier: verifier,
		Assessor: assessor,
		Gateway:  payment.NewSimulatedGateway(cfg.Payment.ProcessingDelay),
		Emitter:  outbox.NewEmitter("submission-service"),
		Metrics:  metrics,
		Logger:   logger,
	})

	// Set up Prometheus metrics handler on a separate port if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	// Channel to collect server errors.
	errCh := make(chan error, 2)

	// Start HTTP REST API server in background.
	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Start metrics server if configured.
	if metricsServer != nil {
		go func() {
			logger.Info().
				Str("address", metricsServer.Addr).
				Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().Str("http_address", httpCfg.Address)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("submission-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down submission-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	logger.Info().Msg("submission-service stopped")
	return nil
}
