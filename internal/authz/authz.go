// Package authz centralizes the access rules for papers. Every handler that
// touches a paper funnels through Authorize; the rules live nowhere else.
package authz

import (
	"github.com/openscholar/submission-service/internal/domain"
)

// Action is an operation a caller wants to perform on a paper.
type Action string

const (
	// ActionRead covers metadata reads and file downloads.
	ActionRead Action = "read"
	// ActionConfirmPayment covers paying the submission fee on a
	// payment_pending paper.
	ActionConfirmPayment Action = "confirm_payment"
	// ActionReview covers status transitions, admin feedback, and writes to
	// the assessment fields.
	ActionReview Action = "review"
)

// Caller identifies the authenticated principal asking for access.
type Caller struct {
	UID   string
	Admin bool
}

// Authorize decides whether the caller may perform action on a paper owned by
// ownerUID whose stored status is status. It is a pure function: nil means
// allowed, domain.ErrForbidden means denied.
//
// The rules, in order:
//   - Admins may do anything.
//   - The owner may read their paper and confirm its payment, nothing else.
//   - Anyone else may read a paper only once it is published.
func Authorize(caller Caller, ownerUID string, status domain.Status, action Action) error {
	if caller.Admin {
		return nil
	}

	if caller.UID != "" && caller.UID == ownerUID {
		switch action {
		case ActionRead, ActionConfirmPayment:
			return nil
		}
		return domain.ErrForbidden
	}

	if action == ActionRead && status == domain.StatusPublished {
		return nil
	}

	return domain.ErrForbidden
}
