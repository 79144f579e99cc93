//go:build integration

package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/openscholar/submission-service/internal/domain"
	"github.com/openscholar/submission-service/internal/outbox"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("submission_test"),
		postgres.WithUsername("submission_test"),
		postgres.WithPassword("testpassword"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	dbURL, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get connection string: %v\n", err)
		os.Exit(1)
	}

	// Migrations path is relative from internal/repository/.
	migrator, err := migrate.New("file://../../migrations", dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create migrator: %v\n", err)
		os.Exit(1)
	}
	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	testPool = pool

	code := m.Run()

	pool.Close()
	_ = container.Terminate(context.Background())
	os.Exit(code)
}

func cleanTables(t *testing.T, tables ...string) {
	t.Helper()
	for _, table := range tables {
		_, err := testPool.Exec(context.Background(), fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		require.NoError(t, err)
	}
}

func TestPgPaperRepository_Integration(t *testing.T) {
	cleanTables(t, "papers")
	repo := NewPgPaperRepository(testPool)
	ctx := context.Background()

	newPaper := func(owner string, status domain.Status) *domain.Paper {
		return &domain.Paper{
			ID:       uuid.New(),
			OwnerID:  owner,
			Title:    "Integration Test Paper",
			Abstract: "A round-trip through a real database.",
			Authors: []domain.Author{
				{Name: "Dana Whitfield", Affiliation: "Coastal Institute", Email: "dana@example.edu"},
			},
			Keywords:   []string{"integration", "postgres"},
			FileName:   "paper.pdf",
			FileType:   domain.MIMETypePDF,
			FileData:   []byte("%PDF-1.7 integration test body"),
			Status:     status,
			UploadedAt: time.Now().UTC(),
		}
	}

	t.Run("create and get roundtrip", func(t *testing.T) {
		paper := newPaper("uid-roundtrip", domain.StatusSubmitted)

		created, err := repo.Create(ctx, paper)
		require.NoError(t, err)
		assert.Equal(t, int64(len(paper.FileData)), created.FileSize)
		assert.False(t, created.CreatedAt.IsZero())

		got, err := repo.GetByID(ctx, paper.ID)
		require.NoError(t, err)
		assert.Equal(t, paper.Title, got.Title)
		assert.Equal(t, paper.OwnerID, got.OwnerID)
		assert.Equal(t, domain.StatusSubmitted, got.Status)
		require.Len(t, got.Authors, 1)
		assert.Equal(t, "Dana Whitfield", got.Authors[0].Name)
		// Metadata reads never carry the manuscript binary.
		assert.Nil(t, got.FileData)
	})

	t.Run("manuscript binary survives storage", func(t *testing.T) {
		paper := newPaper("uid-file", domain.StatusSubmitted)
		_, err := repo.Create(ctx, paper)
		require.NoError(t, err)

		data, err := repo.GetFile(ctx, paper.ID)
		require.NoError(t, err)
		assert.Equal(t, paper.FileData, data)
	})

	t.Run("update status and feedback", func(t *testing.T) {
		paper := newPaper("uid-update", domain.StatusSubmitted)
		_, err := repo.Create(ctx, paper)
		require.NoError(t, err)

		paper.Status = domain.StatusRejected
		paper.AdminFeedback = "Methodology lacks controls."
		_, err = repo.Update(ctx, paper)
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, paper.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusRejected, got.Status)
		assert.Equal(t, "Methodology lacks controls.", got.AdminFeedback)
	})

	t.Run("assessment lands independently", func(t *testing.T) {
		paper := newPaper("uid-assess", domain.StatusSubmitted)
		_, err := repo.Create(ctx, paper)
		require.NoError(t, err)

		score := 0.12
		prob := 0.7
		err = repo.UpdateAssessment(ctx, paper.ID, domain.Assessment{
			PlagiarismScore:       &score,
			HighlightedSections:   []string{"introduction paragraph two"},
			AcceptanceProbability: &prob,
			Reasoning:             "minor textual overlap only",
		})
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, paper.ID)
		require.NoError(t, err)
		require.NotNil(t, got.Assessment.PlagiarismScore)
		assert.InDelta(t, 0.12, *got.Assessment.PlagiarismScore, 1e-9)
		require.NotNil(t, got.Assessment.AcceptanceProbability)
		assert.InDelta(t, 0.7, *got.Assessment.AcceptanceProbability, 1e-9)
	})

	t.Run("list visibility", func(t *testing.T) {
		cleanTables(t, "papers")

		mine := newPaper("uid-viewer", domain.StatusSubmitted)
		_, err := repo.Create(ctx, mine)
		require.NoError(t, err)

		published := newPaper("uid-someone-else", domain.StatusPublished)
		_, err = repo.Create(ctx, published)
		require.NoError(t, err)

		hidden := newPaper("uid-someone-else", domain.StatusUnderReview)
		_, err = repo.Create(ctx, hidden)
		require.NoError(t, err)

		viewer := "uid-viewer"
		papers, total, err := repo.List(ctx, PaperFilter{VisibleTo: &viewer})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)

		ids := make(map[uuid.UUID]bool)
		for _, p := range papers {
			ids[p.ID] = true
		}
		assert.True(t, ids[mine.ID])
		assert.True(t, ids[published.ID])
		assert.False(t, ids[hidden.ID])
	})

	t.Run("get missing paper", func(t *testing.T) {
		_, err := repo.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestPgUserRepository_Integration(t *testing.T) {
	cleanTables(t, "users")
	repo := NewPgUserRepository(testPool)
	ctx := context.Background()

	t.Run("create and get roundtrip", func(t *testing.T) {
		user := &domain.User{
			UID:         "uid-int-1",
			DisplayName: "Dana Whitfield",
			Username:    "dwhitfield",
			Email:       "dana@example.edu",
			Phone:       "+15550100123",
			Role:        domain.RoleAuthor,
		}

		created, err := repo.Create(ctx, user)
		require.NoError(t, err)
		assert.False(t, created.CreatedAt.IsZero())

		got, err := repo.GetByUID(ctx, "uid-int-1")
		require.NoError(t, err)
		assert.Equal(t, "dwhitfield", got.Username)
		assert.False(t, got.Admin)
	})

	t.Run("duplicate username conflicts", func(t *testing.T) {
		_, err := repo.Create(ctx, &domain.User{
			UID:         "uid-int-2",
			DisplayName: "Impostor",
			Username:    "dwhitfield",
			Email:       "other@example.edu",
			Role:        domain.RoleAuthor,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)

		var dup *domain.AlreadyExistsError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "username", dup.Field)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		_, err := repo.Create(ctx, &domain.User{
			UID:         "uid-int-3",
			DisplayName: "Second Dana",
			Username:    "dana2",
			Email:       "dana@example.edu",
			Role:        domain.RoleAuthor,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)

		var dup *domain.AlreadyExistsError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "email", dup.Field)
	})

	t.Run("availability checks", func(t *testing.T) {
		taken, err := repo.IsUsernameTaken(ctx, "dwhitfield", "")
		require.NoError(t, err)
		assert.True(t, taken)

		taken, err = repo.IsUsernameTaken(ctx, "dwhitfield", "uid-int-1")
		require.NoError(t, err)
		assert.False(t, taken)

		taken, err = repo.IsPhoneTaken(ctx, "+15559999999", "")
		require.NoError(t, err)
		assert.False(t, taken)
	})

	t.Run("update never touches admin", func(t *testing.T) {
		_, err := testPool.Exec(ctx, "UPDATE users SET admin = TRUE WHERE uid = $1", "uid-int-1")
		require.NoError(t, err)

		updated, err := repo.Update(ctx, &domain.User{
			UID:         "uid-int-1",
			DisplayName: "Dana W. Whitfield",
			Username:    "dwhitfield",
			Email:       "dana@example.edu",
			Role:        domain.RoleAuthor,
			Admin:       false,
		})
		require.NoError(t, err)
		// The stored flag wins regardless of the input struct.
		assert.True(t, updated.Admin)
	})
}

func outboxEventForTest(t *testing.T) *outbox.Event {
	t.Helper()
	emitter := outbox.NewEmitter("submission-service-test")
	event, err := emitter.Emit(outbox.EmitParams{
		PaperID:   uuid.New(),
		EventType: outbox.EventTypePaperSubmitted,
		Payload:   map[string]string{"title": "Integration Test Paper"},
	})
	require.NoError(t, err)
	return event
}

func TestPgOutboxRepository_Integration(t *testing.T) {
	cleanTables(t, "outbox_events")
	repo := NewPgOutboxRepository(testPool)
	ctx := context.Background()

	t.Run("insert fetch publish cycle", func(t *testing.T) {
		event := outboxEventForTest(t)
		require.NoError(t, repo.Insert(ctx, event))

		pending, err := repo.FetchPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, event.ID, pending[0].ID)

		require.NoError(t, repo.MarkPublished(ctx, event.ID))

		pending, err = repo.FetchPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("repeated failures dead letter", func(t *testing.T) {
		cleanTables(t, "outbox_events")
		event := outboxEventForTest(t)
		event.MaxAttempts = 2
		require.NoError(t, repo.Insert(ctx, event))

		require.NoError(t, repo.MarkFailed(ctx, event.ID, "broker unreachable"))
		pending, err := repo.FetchPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1, "one failure should leave the event retryable")

		require.NoError(t, repo.MarkFailed(ctx, event.ID, "broker unreachable"))
		pending, err = repo.FetchPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending, "hitting max_attempts should dead-letter the event")
	})
}
