// Package main provides the outbox relay worker that publishes pending
// events to Kafka.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/openscholar/submission-service/internal/config"
	"github.com/openscholar/submission-service/internal/database"
	"github.com/openscholar/submission-service/internal/observability"
	"github.com/openscholar/submission-service/internal/outbox"
	"github.com/openscholar/submission-service/internal/repository"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !cfg.Kafka.Enabled {
		return fmt.Errorf("kafka publishing is disabled; nothing to relay")
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "relay").Logger()
	logger.Info().Msg("submission-service outbox relay starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	writer := outbox.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer func() {
		if closeErr := writer.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close kafka writer")
		}
	}()

	var metrics outbox.RelayMetrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics("submission_service")
	}

	relay := outbox.NewRelay(
		repository.NewOutboxTransactor(db),
		writer,
		metrics,
		logger,
		outbox.RelayConfig{
			PollInterval: cfg.Outbox.PollInterval,
			BatchSize:    cfg.Outbox.BatchSize,
		},
	)

	logger.Info().
		Strs("brokers", cfg.Kafka.Brokers).
		Str("topic", cfg.Kafka.Topic).
		Msg("relay publishing to kafka")

	if err := relay.Run(ctx); err != nil {
		return fmt.Errorf("relay: %w", err)
	}

	logger.Info().Msg("submission-service outbox relay stopped")
	return nil
}
