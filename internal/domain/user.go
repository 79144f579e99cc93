package domain

import "time"

// Role is the descriptive role label on a user profile. It is distinct from
// the Admin privilege flag: an account can carry the "admin" role label
// without the flag, and the flag alone grants elevated access.
type Role string

const (
	RoleAuthor   Role = "author"
	RoleReviewer Role = "reviewer"
	RoleAdmin    Role = "admin"
)

// IsValid returns true for a recognized role label.
func (r Role) IsValid() bool {
	switch r {
	case RoleAuthor, RoleReviewer, RoleAdmin:
		return true
	default:
		return false
	}
}

// User represents one account profile. The UID is the external identity
// provider's subject and is the primary key; profile records are created on
// first authenticated write after signup.
type User struct {
	// UID is the identity-provider subject. Immutable.
	UID string `json:"uid"`

	DisplayName string `json:"display_name"`

	// Username is unique across all users when set.
	Username string `json:"username,omitempty"`

	Email string `json:"email"`

	// Phone is unique across all users when set.
	Phone string `json:"phone,omitempty"`

	Institution  string `json:"institution,omitempty"`
	ResearcherID string `json:"researcher_id,omitempty"`

	Role Role `json:"role"`

	// Admin is the privilege flag. It is never settable through profile
	// updates; only a trusted operation may change it.
	Admin bool `json:"admin"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
