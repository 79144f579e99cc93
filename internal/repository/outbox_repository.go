package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/openscholar/submission-service/internal/outbox"
)

// OutboxRepository manages the transactional outbox queue.
//
// Insert is meant to run on the same transaction as the paper write it
// describes; pass the transaction-scoped repository from
// database.DB.WithTransaction. The remaining methods are used by the relay.
type OutboxRepository interface {
	// Insert enqueues an event for delivery.
	Insert(ctx context.Context, event *outbox.Event) error

	// FetchPending returns up to limit pending events, oldest first.
	FetchPending(ctx context.Context, limit int) ([]*outbox.Event, error)

	// MarkPublished records a successful delivery.
	MarkPublished(ctx context.Context, id uuid.UUID) error

	// MarkFailed records a failed delivery attempt, dead-lettering the
	// event once attempts reach max_attempts.
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
}
