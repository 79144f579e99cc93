package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Default relay tuning values.
const (
	defaultPollInterval = 2 * time.Second
	defaultBatchSize    = 50
)

// Publisher delivers messages to the broker. *kafka.Writer satisfies it.
type Publisher interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Store is the subset of outbox persistence the relay needs.
type Store interface {
	// FetchPending returns up to limit pending events, oldest first.
	FetchPending(ctx context.Context, limit int) ([]*Event, error)

	// MarkPublished records a successful delivery.
	MarkPublished(ctx context.Context, id uuid.UUID) error

	// MarkFailed records a failed delivery attempt. Implementations move
	// the event to the dead status once attempts reach MaxAttempts.
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
}

// TransactFunc runs fn against a Store bound to a single database
// transaction. The row locks FetchPending takes must survive until the batch
// is marked, so fetch and mark have to happen on the same transaction;
// running them through a pool in auto-commit mode would release the locks
// immediately and let concurrent relays double-publish.
type TransactFunc func(ctx context.Context, fn func(store Store) error) error

// RelayMetrics receives delivery outcome counts.
type RelayMetrics interface {
	RecordOutboxPublished()
	RecordOutboxFailed()
	RecordOutboxDeadLettered()
}

// RelayConfig tunes the relay loop.
type RelayConfig struct {
	// PollInterval is the sleep between drain passes.
	PollInterval time.Duration

	// BatchSize is the maximum number of events fetched per pass.
	BatchSize int
}

// Relay drains pending outbox events to Kafka.
type Relay struct {
	transact  TransactFunc
	publisher Publisher
	metrics   RelayMetrics
	logger    zerolog.Logger
	config    RelayConfig
}

// NewRelay creates a relay over the given transactor and publisher. Zero
// config values fall back to defaults.
func NewRelay(transact TransactFunc, publisher Publisher, metrics RelayMetrics, logger zerolog.Logger, config RelayConfig) *Relay {
	if config.PollInterval <= 0 {
		config.PollInterval = defaultPollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}
	return &Relay{
		transact:  transact,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger.With().Str("component", "outbox_relay").Logger(),
		config:    config,
	}
}

// Run polls the outbox until the context is cancelled. Each pass drains up to
// BatchSize pending events. The error is nil on clean shutdown.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info().
		Dur("poll_interval", r.config.PollInterval).
		Int("batch_size", r.config.BatchSize).
		Msg("outbox relay started")

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("outbox relay stopped")
			return nil
		case <-ticker.C:
			if err := r.DrainOnce(ctx); err != nil {
				r.logger.Error().Err(err).Msg("outbox drain pass failed")
			}
		}
	}
}

// DrainOnce fetches one batch of pending events and publishes them. The whole
// pass runs in one transaction so the SKIP LOCKED row locks from the fetch
// hold until the batch is marked. Failures on individual events are recorded
// against the event and do not stop the batch.
func (r *Relay) DrainOnce(ctx context.Context) error {
	return r.transact(ctx, func(store Store) error {
		events, err := store.FetchPending(ctx, r.config.BatchSize)
		if err != nil {
			return fmt.Errorf("fetch pending events: %w", err)
		}

		for _, event := range events {
			if err := r.publish(ctx, event); err != nil {
				r.recordFailure(ctx, store, event, err)
				continue
			}

			if err := store.MarkPublished(ctx, event.ID); err != nil {
				r.logger.Error().Err(err).
					Str("event_id", event.ID.String()).
					Msg("failed to mark event as published")
				continue
			}

			if r.metrics != nil {
				r.metrics.RecordOutboxPublished()
			}
		}

		return nil
	})
}

// publish sends a single event to the broker.
func (r *Relay) publish(ctx context.Context, event *Event) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.ID.String())},
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "aggregate_type", Value: []byte(event.AggregateType)},
		},
	}

	if err := r.publisher.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	return nil
}

// recordFailure marks the event failed and emits the matching metrics.
func (r *Relay) recordFailure(ctx context.Context, store Store, event *Event, cause error) {
	r.logger.Warn().Err(cause).
		Str("event_id", event.ID.String()).
		Str("event_type", event.EventType).
		Int("attempts", event.Attempts+1).
		Msg("event delivery failed")

	if err := store.MarkFailed(ctx, event.ID, cause.Error()); err != nil {
		r.logger.Error().Err(err).
			Str("event_id", event.ID.String()).
			Msg("failed to record delivery failure")
		return
	}

	if r.metrics == nil {
		return
	}

	// This attempt was the last one; the store just dead-lettered it.
	if event.Attempts+1 >= event.MaxAttempts {
		r.metrics.RecordOutboxDeadLettered()
	} else {
		r.metrics.RecordOutboxFailed()
	}
}

// NewKafkaWriter creates a kafka-go writer for the given brokers and topic,
// configured the way the relay expects: hash balancing on the message key so
// events for one paper stay ordered within a partition.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 100 * time.Millisecond,
	}
}
