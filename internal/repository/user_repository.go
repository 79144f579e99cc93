package repository

import (
	"context"

	"github.com/openscholar/submission-service/internal/domain"
)

// UserRepository handles user profile persistence. Users are keyed by the
// UID carried in their auth token, not by a database-generated ID.
type UserRepository interface {
	// Create inserts a new user profile.
	// Returns domain.ErrAlreadyExists if the UID, username, or phone is
	// already taken.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)

	// GetByUID retrieves a user profile by UID.
	// Returns domain.ErrNotFound if no matching user exists.
	GetByUID(ctx context.Context, uid string) (*domain.User, error)

	// Update persists the mutable profile fields of a user. The admin flag
	// is deliberately excluded; it can only change through migrations or
	// operator tooling.
	// Returns domain.ErrNotFound if the user does not exist.
	// Returns domain.ErrAlreadyExists if the username or phone is taken.
	Update(ctx context.Context, user *domain.User) (*domain.User, error)

	// IsUsernameTaken reports whether a username is in use by a user other
	// than excludeUID. Pass an empty excludeUID to check against everyone.
	IsUsernameTaken(ctx context.Context, username, excludeUID string) (bool, error)

	// IsPhoneTaken reports whether a phone number is in use by a user other
	// than excludeUID. Pass an empty excludeUID to check against everyone.
	IsPhoneTaken(ctx context.Context, phone, excludeUID string) (bool, error)
}
