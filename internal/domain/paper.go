// Package domain provides domain models and business logic for the Paper Submission Service.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle states of a paper submission.
// These values must match the database enum paper_status.
//
// StatusPaymentOverdue is deliberately absent: overdue is a read-time
// projection over (status, payment_due_at, now) and is never stored.
// See EffectiveStatus in the lifecycle package.
type Status string

const (
	StatusDraft          Status = "draft"
	StatusSubmitted      Status = "submitted"
	StatusUnderReview    Status = "under_review"
	StatusActionRequired Status = "action_required"
	StatusAccepted       Status = "accepted"
	StatusRejected       Status = "rejected"
	StatusPaymentPending Status = "payment_pending"
	StatusPublished      Status = "published"

	// StatusPaymentOverdue is a display-only status. It is valid in API
	// responses but must never be written to storage.
	StatusPaymentOverdue Status = "payment_overdue"
)

// IsTerminal returns true if the status represents a final state that will not change.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusAccepted, StatusRejected, StatusPublished:
		return true
	default:
		return false
	}
}

// IsStorable returns true if the status may be persisted.
func (s Status) IsStorable() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusUnderReview, StatusActionRequired,
		StatusAccepted, StatusRejected, StatusPaymentPending, StatusPublished:
		return true
	default:
		return false
	}
}

// PaymentOption selects how the submission fee is settled at creation time.
type PaymentOption string

const (
	PayNow   PaymentOption = "pay_now"
	PayLater PaymentOption = "pay_later"
)

// IsValid returns true for a recognized payment option.
func (o PaymentOption) IsValid() bool {
	return o == PayNow || o == PayLater
}

// Allowed manuscript MIME types.
const (
	MIMETypePDF  = "application/pdf"
	MIMETypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// IsAllowedFileType returns true if the MIME type is acceptable for a manuscript.
func IsAllowedFileType(mimeType string) bool {
	switch mimeType {
	case MIMETypePDF, MIMETypeDOCX:
		return true
	default:
		return false
	}
}

// Author represents a paper author with optional affiliation.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
	Email       string `json:"email,omitempty"`
}

// String returns a formatted string representation of the author.
func (a Author) String() string {
	var sb strings.Builder
	sb.WriteString(a.Name)

	if a.Affiliation != "" {
		sb.WriteString(" (")
		sb.WriteString(a.Affiliation)
		sb.WriteString(")")
	}

	return sb.String()
}

// Assessment holds the advisory annotations produced by the LLM assessor.
// These fields are opaque to the lifecycle engine: they are written by the
// advisory service (or an admin) and never influence status transitions.
type Assessment struct {
	// PlagiarismScore is the estimated fraction of unoriginal content, in [0,1].
	PlagiarismScore *float64 `json:"plagiarism_score,omitempty"`

	// HighlightedSections lists passages flagged as potentially unoriginal.
	HighlightedSections []string `json:"highlighted_sections,omitempty"`

	// AcceptanceProbability is the estimated acceptance likelihood, in [0,1].
	AcceptanceProbability *float64 `json:"acceptance_probability,omitempty"`

	// Reasoning is the model's free-text justification for the scores.
	Reasoning string `json:"reasoning,omitempty"`
}

// Paper represents one manuscript submission.
type Paper struct {
	ID uuid.UUID `json:"id"`

	// OwnerID is the identity-provider uid of the submitting author.
	// Immutable after creation.
	OwnerID string `json:"owner_id"`

	// Manuscript metadata.
	Title    string   `json:"title"`
	Abstract string   `json:"abstract,omitempty"`
	Authors  []Author `json:"authors"`
	Keywords []string `json:"keywords,omitempty"`

	// Binary payload. FileData is set exactly once at creation and is
	// projected out of list queries.
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
	FileSize int64  `json:"file_size"`
	FileData []byte `json:"-"`

	// Status is the stored lifecycle state. Mutated only by the lifecycle engine.
	Status Status `json:"status"`

	// Timestamps. UploadedAt is immutable. SubmittedAt is set when payment
	// completes (or immediately for pay-now). PaymentDueAt is set only on the
	// pay-later path and cleared once paid.
	UploadedAt   time.Time  `json:"uploaded_at"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`
	PaymentDueAt *time.Time `json:"payment_due_at,omitempty"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`

	// Advisory annotations and admin feedback.
	Assessment    Assessment `json:"assessment"`
	AdminFeedback string     `json:"admin_feedback,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOwnedBy returns true if the paper belongs to the given user.
func (p *Paper) IsOwnedBy(uid string) bool {
	return p.OwnerID == uid
}

// HasFile returns true if the binary payload is present on this copy of the
// record. List queries return papers without file bytes.
func (p *Paper) HasFile() bool {
	return len(p.FileData) > 0
}
