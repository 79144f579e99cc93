package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscholar/submission-service/internal/domain"
	"github.com/openscholar/submission-service/internal/outbox"
)

func newTestOutboxEvent(t *testing.T) *outbox.Event {
	t.Helper()
	event, err := outbox.NewEmitter("submission-service").Emit(outbox.EmitParams{
		PaperID:   uuid.New(),
		EventType: outbox.EventTypePaperSubmitted,
		Payload:   outbox.SubmittedPayload{OwnerUID: "uid-1", Title: "T"},
	})
	require.NoError(t, err)
	return event
}

var outboxTestColumns = []string{
	"id", "aggregate_type", "aggregate_id", "event_type",
	"payload", "metadata", "status", "attempts", "max_attempts",
	"last_error", "created_at", "published_at",
}

func TestPgOutboxRepository_Insert(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts event", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgOutboxRepository(mock)
		event := newTestOutboxEvent(t)

		mock.ExpectExec("INSERT INTO outbox_events").
			WithArgs(
				event.ID, event.AggregateType, event.AggregateID, event.EventType,
				event.Payload, event.Metadata, event.Status, event.Attempts,
				event.MaxAttempts, event.CreatedAt,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Insert(ctx, event))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects nil event", func(t *testing.T) {
		repo := NewPgOutboxRepository(nil)

		err := repo.Insert(ctx, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("rejects missing event type", func(t *testing.T) {
		repo := NewPgOutboxRepository(nil)
		event := newTestOutboxEvent(t)
		event.EventType = ""

		err := repo.Insert(ctx, event)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestPgOutboxRepository_FetchPending(t *testing.T) {
	ctx := context.Background()

	t.Run("returns pending events oldest first", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgOutboxRepository(mock)
		event := newTestOutboxEvent(t)

		mock.ExpectQuery("SELECT (.+) FROM outbox_events").
			WithArgs(outbox.EventStatusPending, 10).
			WillReturnRows(pgxmock.NewRows(outboxTestColumns).AddRow(
				event.ID, event.AggregateType, event.AggregateID, event.EventType,
				event.Payload, event.Metadata, event.Status, event.Attempts, event.MaxAttempts,
				(*string)(nil), event.CreatedAt, (*time.Time)(nil),
			))

		events, err := repo.FetchPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, event.ID, events[0].ID)
		assert.Empty(t, events[0].LastError)
		assert.Nil(t, events[0].PublishedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-positive limit falls back to default", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgOutboxRepository(mock)

		mock.ExpectQuery("SELECT (.+) FROM outbox_events").
			WithArgs(outbox.EventStatusPending, defaultFilterLimit).
			WillReturnRows(pgxmock.NewRows(outboxTestColumns))

		events, err := repo.FetchPending(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, events)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgOutboxRepository_MarkPublished(t *testing.T) {
	ctx := context.Background()

	t.Run("marks event published", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgOutboxRepository(mock)
		id := uuid.New()

		mock.ExpectExec("UPDATE outbox_events SET").
			WithArgs(id, outbox.EventStatusPublished, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.MarkPublished(ctx, id))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for unknown event", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgOutboxRepository(mock)

		mock.ExpectExec("UPDATE outbox_events SET").
			WithArgs(pgxmock.AnyArg(), outbox.EventStatusPublished, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = repo.MarkPublished(ctx, uuid.New())
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestPgOutboxRepository_MarkFailed(t *testing.T) {
	ctx := context.Background()

	t.Run("records failure", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgOutboxRepository(mock)
		id := uuid.New()

		mock.ExpectExec("UPDATE outbox_events SET").
			WithArgs(id, "broker unavailable", outbox.EventStatusDead, outbox.EventStatusPending).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.MarkFailed(ctx, id, "broker unavailable"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for unknown event", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgOutboxRepository(mock)

		mock.ExpectExec("UPDATE outbox_events SET").
			WithArgs(pgxmock.AnyArg(), "x", outbox.EventStatusDead, outbox.EventStatusPending).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = repo.MarkFailed(ctx, uuid.New(), "x")
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}
