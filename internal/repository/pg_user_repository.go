package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/openscholar/submission-service/internal/domain"
)

// Compile-time interface verification.
var _ UserRepository = (*PgUserRepository)(nil)

const userColumns = `uid, display_name, username, email, phone,
	institution, researcher_id, role, admin, created_at, updated_at`

// PgUserRepository is a PostgreSQL implementation of UserRepository.
type PgUserRepository struct {
	db DBTX
}

// NewPgUserRepository creates a new PostgreSQL user repository.
func NewPgUserRepository(db DBTX) *PgUserRepository {
	return &PgUserRepository{db: db}
}

// Create inserts a new user profile.
func (r *PgUserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user == nil {
		return nil, domain.NewValidationError("user", "user cannot be nil")
	}
	if user.UID == "" {
		return nil, domain.NewValidationError("uid", "uid is required")
	}
	if user.Role != "" && !user.Role.IsValid() {
		return nil, domain.NewValidationError("role", "must be author, reviewer, or admin")
	}

	now := time.Now().UTC()
	if user.Role == "" {
		user.Role = domain.RoleAuthor
	}

	query := `
		INSERT INTO users (
			uid, display_name, username, email, phone,
			institution, researcher_id, role, admin, created_at, updated_at
		) VALUES (
			$1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11
		)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		user.UID,
		user.DisplayName,
		user.Username,
		user.Email,
		user.Phone,
		user.Institution,
		user.ResearcherID,
		user.Role,
		user.Admin,
		now,
		now,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if dupErr := mapUserUniqueViolation(err, user); dupErr != nil {
			return nil, dupErr
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return user, nil
}

// GetByUID retrieves a user profile by UID.
func (r *PgUserRepository) GetByUID(ctx context.Context, uid string) (*domain.User, error) {
	if uid == "" {
		return nil, domain.NewValidationError("uid", "uid is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE uid = $1`, userColumns)

	row := r.db.QueryRow(ctx, query, uid)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("user", uid)
		}
		return nil, fmt.Errorf("failed to get user by UID: %w", err)
	}

	return user, nil
}

// Update persists the mutable profile fields of a user. The admin flag is
// never written here.
func (r *PgUserRepository) Update(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user == nil {
		return nil, domain.NewValidationError("user", "user cannot be nil")
	}
	if user.UID == "" {
		return nil, domain.NewValidationError("uid", "uid is required")
	}
	if user.Role != "" && !user.Role.IsValid() {
		return nil, domain.NewValidationError("role", "must be author, reviewer, or admin")
	}

	query := `
		UPDATE users SET
			display_name = $2,
			username = NULLIF($3, ''),
			email = $4,
			phone = NULLIF($5, ''),
			institution = $6,
			researcher_id = $7,
			role = $8,
			updated_at = $9
		WHERE uid = $1
		RETURNING admin, updated_at`

	err := r.db.QueryRow(ctx, query,
		user.UID,
		user.DisplayName,
		user.Username,
		user.Email,
		user.Phone,
		user.Institution,
		user.ResearcherID,
		user.Role,
		time.Now().UTC(),
	).Scan(&user.Admin, &user.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("user", user.UID)
		}
		if dupErr := mapUserUniqueViolation(err, user); dupErr != nil {
			return nil, dupErr
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

// IsUsernameTaken reports whether a username is in use by another user.
func (r *PgUserRepository) IsUsernameTaken(ctx context.Context, username, excludeUID string) (bool, error) {
	if username == "" {
		return false, domain.NewValidationError("username", "username is required")
	}

	query := `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE username = $1 AND uid != $2
		)`

	var taken bool
	if err := r.db.QueryRow(ctx, query, username, excludeUID).Scan(&taken); err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}

	return taken, nil
}

// IsPhoneTaken reports whether a phone number is in use by another user.
func (r *PgUserRepository) IsPhoneTaken(ctx context.Context, phone, excludeUID string) (bool, error) {
	if phone == "" {
		return false, domain.NewValidationError("phone", "phone is required")
	}

	query := `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE phone = $1 AND uid != $2
		)`

	var taken bool
	if err := r.db.QueryRow(ctx, query, phone, excludeUID).Scan(&taken); err != nil {
		return false, fmt.Errorf("failed to check phone: %w", err)
	}

	return taken, nil
}

// mapUserUniqueViolation translates a 23505 error into the domain error for
// the violated constraint. Returns nil for any other error.
func mapUserUniqueViolation(err error, user *domain.User) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}

	switch {
	case strings.Contains(pgErr.ConstraintName, "username"):
		return domain.NewAlreadyExistsError("user", "username", user.Username)
	case strings.Contains(pgErr.ConstraintName, "email"):
		return domain.NewAlreadyExistsError("user", "email", user.Email)
	case strings.Contains(pgErr.ConstraintName, "phone"):
		return domain.NewAlreadyExistsError("user", "phone", user.Phone)
	default:
		return domain.NewAlreadyExistsError("user", "uid", user.UID)
	}
}

// scanUser scans a single row into a User.
func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	var username, phone *string

	err := row.Scan(
		&user.UID, &user.DisplayName, &username, &user.Email, &phone,
		&user.Institution, &user.ResearcherID, &user.Role, &user.Admin,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if username != nil {
		user.Username = *username
	}
	if phone != nil {
		user.Phone = *phone
	}

	return &user, nil
}
