package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/openscholar/submission-service/internal/database"
	"github.com/openscholar/submission-service/internal/domain"
	"github.com/openscholar/submission-service/internal/outbox"
)

// Compile-time interface verification.
var _ OutboxRepository = (*PgOutboxRepository)(nil)

// PgOutboxRepository is a PostgreSQL implementation of OutboxRepository.
type PgOutboxRepository struct {
	db DBTX
}

// NewPgOutboxRepository creates a new PostgreSQL outbox repository.
func NewPgOutboxRepository(db DBTX) *PgOutboxRepository {
	return &PgOutboxRepository{db: db}
}

// NewOutboxTransactor builds an outbox.TransactFunc over the pool. Each call
// opens one transaction and hands the relay a repository bound to it, so the
// row locks from FetchPending hold until the drain pass commits.
func NewOutboxTransactor(db *database.DB) outbox.TransactFunc {
	return func(ctx context.Context, fn func(store outbox.Store) error) error {
		return db.WithTransaction(ctx, func(tx pgx.Tx) error {
			return fn(NewPgOutboxRepository(tx))
		})
	}
}

// Insert enqueues an event for delivery.
func (r *PgOutboxRepository) Insert(ctx context.Context, event *outbox.Event) error {
	if event == nil {
		return domain.NewValidationError("event", "event cannot be nil")
	}
	if event.EventType == "" {
		return domain.NewValidationError("event_type", "event type is required")
	}

	query := `
		INSERT INTO outbox_events (
			id, aggregate_type, aggregate_id, event_type,
			payload, metadata, status, attempts, max_attempts, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		event.ID,
		event.AggregateType,
		event.AggregateID,
		event.EventType,
		event.Payload,
		event.Metadata,
		event.Status,
		event.Attempts,
		event.MaxAttempts,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	return nil
}

// FetchPending returns up to limit pending events, oldest first. Rows are
// locked with FOR UPDATE SKIP LOCKED so concurrent relays never pick up the
// same event. The locks only protect a batch when the repository runs on a
// transaction that stays open until the batch is marked; use
// NewOutboxTransactor for that.
func (r *PgOutboxRepository) FetchPending(ctx context.Context, limit int) ([]*outbox.Event, error) {
	if limit <= 0 {
		limit = defaultFilterLimit
	}

	query := `
		SELECT id, aggregate_type, aggregate_id, event_type,
			payload, metadata, status, attempts, max_attempts,
			last_error, created_at, published_at
		FROM outbox_events
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`

	rows, err := r.db.Query(ctx, query, outbox.EventStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending events: %w", err)
	}
	defer rows.Close()

	events := make([]*outbox.Event, 0, limit)
	for rows.Next() {
		event, err := scanOutboxEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox events: %w", err)
	}

	return events, nil
}

// MarkPublished records a successful delivery.
func (r *PgOutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox_events SET
			status = $2,
			attempts = attempts + 1,
			published_at = $3
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, outbox.EventStatusPublished, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark event published: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("outbox_event", id.String())
	}

	return nil
}

// MarkFailed records a failed delivery attempt. The event is dead-lettered
// once attempts reach max_attempts.
func (r *PgOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	query := `
		UPDATE outbox_events SET
			attempts = attempts + 1,
			last_error = $2,
			status = CASE WHEN attempts + 1 >= max_attempts THEN $3 ELSE $4 END
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, lastError, outbox.EventStatusDead, outbox.EventStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark event failed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("outbox_event", id.String())
	}

	return nil
}

// scanOutboxEvent scans the current row from pgx.Rows into an Event.
func scanOutboxEvent(rows pgx.Rows) (*outbox.Event, error) {
	var event outbox.Event
	var lastError *string

	err := rows.Scan(
		&event.ID, &event.AggregateType, &event.AggregateID, &event.EventType,
		&event.Payload, &event.Metadata, &event.Status, &event.Attempts, &event.MaxAttempts,
		&lastError, &event.CreatedAt, &event.PublishedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastError != nil {
		event.LastError = *lastError
	}

	return &event, nil
}
