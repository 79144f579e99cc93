package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/openscholar/submission-service/internal/domain"
)

// PaperRepository handles persistence of submitted papers and their
// manuscript files. The manuscript binary is written exactly once at
// creation; every other operation works on metadata only.
type PaperRepository interface {
	// Create inserts a new paper together with its manuscript file.
	// Returns the created paper with its assigned ID and timestamps.
	// Returns domain.ErrInvalidInput if required fields are missing or the
	// status is not storable.
	Create(ctx context.Context, paper *domain.Paper) (*domain.Paper, error)

	// GetByID retrieves a paper's metadata by its UUID. The manuscript
	// binary is not loaded; use GetFile for that.
	// Returns domain.ErrNotFound if no matching paper exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Paper, error)

	// GetFile retrieves the manuscript binary for a paper.
	// Returns domain.ErrNotFound if the paper does not exist.
	GetFile(ctx context.Context, id uuid.UUID) ([]byte, error)

	// Update persists the mutable fields of a paper: metadata, status,
	// payment timestamps, assessment fields, and admin feedback. The
	// manuscript file and owner are never changed.
	// Returns domain.ErrNotFound if the paper does not exist.
	// Returns domain.ErrInvalidInput if the status is not storable.
	Update(ctx context.Context, paper *domain.Paper) (*domain.Paper, error)

	// UpdateAssessment writes the advisory assessment fields for a paper.
	// It touches nothing else, so a slow assessment can land after the
	// paper has moved on in its lifecycle.
	// Returns domain.ErrNotFound if the paper does not exist.
	UpdateAssessment(ctx context.Context, id uuid.UUID, assessment domain.Assessment) error

	// List retrieves papers matching the filter criteria. The manuscript
	// binary is projected out of list results.
	// Returns the matching papers and total count for pagination.
	// The total count reflects all matching records regardless of limit/offset.
	List(ctx context.Context, filter PaperFilter) ([]*domain.Paper, int64, error)
}

// PaperFilter specifies criteria for listing papers.
type PaperFilter struct {
	// OwnerID filters to papers owned by a specific user (optional).
	OwnerID *string

	// Status filters to papers with a specific stored status (optional).
	Status *domain.Status

	// AuthorName filters to papers with an author whose name contains the
	// given substring, case-insensitively (optional).
	AuthorName *string

	// VisibleTo restricts results to papers the given non-admin caller may
	// see: their own papers plus published ones (optional).
	VisibleTo *string

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate checks if the filter has valid values and sets defaults.
func (f *PaperFilter) Validate() error {
	if f.Status != nil && !f.Status.IsStorable() {
		return domain.NewValidationError("status", "not a stored status")
	}
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
