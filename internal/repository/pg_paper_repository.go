package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/openscholar/submission-service/internal/domain"
)

// Compile-time interface verification.
var _ PaperRepository = (*PgPaperRepository)(nil)

// paperColumns is the metadata column list shared by reads. The file_data
// column is deliberately absent: the manuscript binary is only ever loaded
// through GetFile.
const paperColumns = `id, owner_uid, title, abstract, authors, keywords,
	file_name, file_type, file_size, status,
	uploaded_at, submitted_at, payment_due_at, paid_at,
	plagiarism_score, highlighted_sections, acceptance_probability, assessment_reasoning,
	admin_feedback, created_at, updated_at`

// PgPaperRepository is a PostgreSQL implementation of PaperRepository.
type PgPaperRepository struct {
	db DBTX
}

// NewPgPaperRepository creates a new PostgreSQL paper repository.
func NewPgPaperRepository(db DBTX) *PgPaperRepository {
	return &PgPaperRepository{db: db}
}

// Create inserts a new paper together with its manuscript file.
func (r *PgPaperRepository) Create(ctx context.Context, paper *domain.Paper) (*domain.Paper, error) {
	if paper == nil {
		return nil, domain.NewValidationError("paper", "paper cannot be nil")
	}
	if paper.OwnerID == "" {
		return nil, domain.NewValidationError("owner_uid", "owner is required")
	}
	if paper.Title == "" {
		return nil, domain.NewValidationError("title", "title is required")
	}
	if len(paper.FileData) == 0 {
		return nil, domain.NewValidationError("file", "manuscript file is required")
	}
	if !domain.IsAllowedFileType(paper.FileType) {
		return nil, domain.NewValidationError("file_type", "only PDF and DOCX manuscripts are accepted")
	}
	if !paper.Status.IsStorable() {
		return nil, domain.NewValidationError("status", "not a stored status")
	}

	authorsJSON, err := json.Marshal(paper.Authors)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal authors: %w", err)
	}
	sectionsJSON, err := json.Marshal(paper.Assessment.HighlightedSections)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal highlighted sections: %w", err)
	}

	now := time.Now().UTC()
	if paper.ID == uuid.Nil {
		paper.ID = uuid.New()
	}
	paper.FileSize = int64(len(paper.FileData))

	query := `
		INSERT INTO papers (
			id, owner_uid, title, abstract, authors, keywords,
			file_name, file_type, file_size, file_data, status,
			uploaded_at, submitted_at, payment_due_at, paid_at,
			plagiarism_score, highlighted_sections, acceptance_probability, assessment_reasoning,
			admin_feedback, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22
		)
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRow(ctx, query,
		paper.ID,
		paper.OwnerID,
		paper.Title,
		paper.Abstract,
		authorsJSON,
		paper.Keywords,
		paper.FileName,
		paper.FileType,
		paper.FileSize,
		paper.FileData,
		paper.Status,
		paper.UploadedAt,
		paper.SubmittedAt,
		paper.PaymentDueAt,
		paper.PaidAt,
		paper.Assessment.PlagiarismScore,
		sectionsJSON,
		paper.Assessment.AcceptanceProbability,
		paper.Assessment.Reasoning,
		paper.AdminFeedback,
		now,
		now,
	).Scan(&paper.ID, &paper.CreatedAt, &paper.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.NewAlreadyExistsError("paper", "id", paper.ID.String())
		}
		return nil, fmt.Errorf("failed to insert paper: %w", err)
	}

	return paper, nil
}

// GetByID retrieves a paper's metadata by its UUID.
func (r *PgPaperRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Paper, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM papers
		WHERE id = $1`, paperColumns)

	row := r.db.QueryRow(ctx, query, id)
	paper, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", id.String())
		}
		return nil, fmt.Errorf("failed to get paper by ID: %w", err)
	}

	return paper, nil
}

// GetFile retrieves the manuscript binary for a paper.
func (r *PgPaperRepository) GetFile(ctx context.Context, id uuid.UUID) ([]byte, error) {
	query := `
		SELECT file_data
		FROM papers
		WHERE id = $1`

	var data []byte
	if err := r.db.QueryRow(ctx, query, id).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", id.String())
		}
		return nil, fmt.Errorf("failed to get paper file: %w", err)
	}

	return data, nil
}

// Update persists the mutable fields of a paper. The manuscript file and
// owner are never touched.
func (r *PgPaperRepository) Update(ctx context.Context, paper *domain.Paper) (*domain.Paper, error) {
	if paper == nil {
		return nil, domain.NewValidationError("paper", "paper cannot be nil")
	}
	if !paper.Status.IsStorable() {
		return nil, domain.NewValidationError("status", "not a stored status")
	}

	authorsJSON, err := json.Marshal(paper.Authors)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal authors: %w", err)
	}
	sectionsJSON, err := json.Marshal(paper.Assessment.HighlightedSections)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal highlighted sections: %w", err)
	}

	query := `
		UPDATE papers SET
			title = $2,
			abstract = $3,
			authors = $4,
			keywords = $5,
			status = $6,
			submitted_at = $7,
			payment_due_at = $8,
			paid_at = $9,
			plagiarism_score = $10,
			highlighted_sections = $11,
			acceptance_probability = $12,
			assessment_reasoning = $13,
			admin_feedback = $14,
			updated_at = $15
		WHERE id = $1
		RETURNING updated_at`

	err = r.db.QueryRow(ctx, query,
		paper.ID,
		paper.Title,
		paper.Abstract,
		authorsJSON,
		paper.Keywords,
		paper.Status,
		paper.SubmittedAt,
		paper.PaymentDueAt,
		paper.PaidAt,
		paper.Assessment.PlagiarismScore,
		sectionsJSON,
		paper.Assessment.AcceptanceProbability,
		paper.Assessment.Reasoning,
		paper.AdminFeedback,
		time.Now().UTC(),
	).Scan(&paper.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", paper.ID.String())
		}
		return nil, fmt.Errorf("failed to update paper: %w", err)
	}

	return paper, nil
}

// UpdateAssessment writes the advisory assessment fields for a paper.
func (r *PgPaperRepository) UpdateAssessment(ctx context.Context, id uuid.UUID, assessment domain.Assessment) error {
	sectionsJSON, err := json.Marshal(assessment.HighlightedSections)
	if err != nil {
		return fmt.Errorf("failed to marshal highlighted sections: %w", err)
	}

	query := `
		UPDATE papers SET
			plagiarism_score = $2,
			highlighted_sections = $3,
			acceptance_probability = $4,
			assessment_reasoning = $5,
			updated_at = $6
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		id,
		assessment.PlagiarismScore,
		sectionsJSON,
		assessment.AcceptanceProbability,
		assessment.Reasoning,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update assessment: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("paper", id.String())
	}

	return nil
}

// List retrieves papers matching the filter criteria.
func (r *PgPaperRepository) List(ctx context.Context, filter PaperFilter) ([]*domain.Paper, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	// Build dynamic WHERE clause
	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.OwnerID != nil {
		conditions = append(conditions, fmt.Sprintf("p.owner_uid = $%d", argIndex))
		args = append(args, *filter.OwnerID)
		argIndex++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.VisibleTo != nil {
		conditions = append(conditions, fmt.Sprintf(
			"(p.owner_uid = $%d OR p.status = '%s')", argIndex, domain.StatusPublished))
		args = append(args, *filter.VisibleTo)
		argIndex++
	}

	if filter.AuthorName != nil && *filter.AuthorName != "" {
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM jsonb_array_elements(p.authors) a WHERE a->>'name' ILIKE '%%' || $%d || '%%')", argIndex))
		args = append(args, *filter.AuthorName)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Count total matching records
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM papers p %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count papers: %w", err)
	}

	// Query with pagination
	selectQuery := fmt.Sprintf(`
		SELECT p.id, p.owner_uid, p.title, p.abstract, p.authors, p.keywords,
			p.file_name, p.file_type, p.file_size, p.status,
			p.uploaded_at, p.submitted_at, p.payment_due_at, p.paid_at,
			p.plagiarism_score, p.highlighted_sections, p.acceptance_probability, p.assessment_reasoning,
			p.admin_feedback, p.created_at, p.updated_at
		FROM papers p
		%s
		ORDER BY p.created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list papers: %w", err)
	}
	defer rows.Close()

	papers := make([]*domain.Paper, 0, filter.Limit)
	for rows.Next() {
		paper, err := scanPaperFromRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan paper: %w", err)
		}
		papers = append(papers, paper)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating papers: %w", err)
	}

	return papers, totalCount, nil
}

// paperScanDest holds the destination pointers for scanning a Paper row.
type paperScanDest struct {
	paper        domain.Paper
	authorsJSON  []byte
	sectionsJSON []byte
}

// destinations returns the slice of pointers for Scan operations.
func (d *paperScanDest) destinations() []interface{} {
	return []interface{}{
		&d.paper.ID, &d.paper.OwnerID, &d.paper.Title, &d.paper.Abstract, &d.authorsJSON, &d.paper.Keywords,
		&d.paper.FileName, &d.paper.FileType, &d.paper.FileSize, &d.paper.Status,
		&d.paper.UploadedAt, &d.paper.SubmittedAt, &d.paper.PaymentDueAt, &d.paper.PaidAt,
		&d.paper.Assessment.PlagiarismScore, &d.sectionsJSON, &d.paper.Assessment.AcceptanceProbability, &d.paper.Assessment.Reasoning,
		&d.paper.AdminFeedback, &d.paper.CreatedAt, &d.paper.UpdatedAt,
	}
}

// finalize performs post-scan processing: unmarshals JSON fields.
func (d *paperScanDest) finalize() (*domain.Paper, error) {
	if len(d.authorsJSON) > 0 {
		if err := json.Unmarshal(d.authorsJSON, &d.paper.Authors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal authors: %w", err)
		}
	}

	if len(d.sectionsJSON) > 0 {
		if err := json.Unmarshal(d.sectionsJSON, &d.paper.Assessment.HighlightedSections); err != nil {
			return nil, fmt.Errorf("failed to unmarshal highlighted sections: %w", err)
		}
	}

	return &d.paper, nil
}

// scanPaper scans a single row into a Paper.
func scanPaper(row pgx.Row) (*domain.Paper, error) {
	var dest paperScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanPaperFromRows scans the current row from pgx.Rows into a Paper.
func scanPaperFromRows(rows pgx.Rows) (*domain.Paper, error) {
	var dest paperScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
