package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/openscholar/submission-service/internal/domain"
	"github.com/openscholar/submission-service/internal/lifecycle"
)

// Response types for JSON serialization.

type authorResponse struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
	Email       string `json:"email,omitempty"`
}

type assessmentResponse struct {
	PlagiarismScore       *float64 `json:"plagiarism_score,omitempty"`
	HighlightedSections   []string `json:"highlighted_sections,omitempty"`
	AcceptanceProbability *float64 `json:"acceptance_probability,omitempty"`
	Reasoning             string   `json:"reasoning,omitempty"`
}

type paperResponse struct {
	ID            string              `json:"id"`
	OwnerUID      string              `json:"owner_uid"`
	Title         string              `json:"title"`
	Abstract      string              `json:"abstract,omitempty"`
	Authors       []authorResponse    `json:"authors"`
	Keywords      []string            `json:"keywords,omitempty"`
	FileName      string              `json:"file_name"`
	FileType      string              `json:"file_type"`
	FileSize      int64               `json:"file_size"`
	Status        string              `json:"status"`
	UploadedAt    time.Time           `json:"uploaded_at"`
	SubmittedAt   *time.Time          `json:"submitted_at,omitempty"`
	PaymentDueAt  *time.Time          `json:"payment_due_at,omitempty"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
	Assessment    *assessmentResponse `json:"assessment,omitempty"`
	AdminFeedback string              `json:"admin_feedback,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

type listPapersResponse struct {
	Papers        []paperResponse `json:"papers"`
	NextPageToken string          `json:"next_page_token,omitempty"`
	TotalCount    int             `json:"total_count"`
}

type payResponse struct {
	PaperID       string     `json:"paper_id"`
	Status        string     `json:"status"`
	TransactionID string     `json:"transaction_id"`
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

type userResponse struct {
	UID          string    `json:"uid"`
	DisplayName  string    `json:"display_name"`
	Username     string    `json:"username,omitempty"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	Institution  string    `json:"institution,omitempty"`
	ResearcherID string    `json:"researcher_id,omitempty"`
	Role         string    `json:"role"`
	Admin        bool      `json:"admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type availabilityResponse struct {
	IsTaken bool `json:"is_taken"`
}

// Converter functions

// domainPaperToResponse maps a paper to its API form. The status is the
// effective status at now, so an unpaid paper past its deadline reads
// payment_overdue without that value ever being stored.
func domainPaperToResponse(p *domain.Paper, now time.Time) paperResponse {
	authors := make([]authorResponse, len(p.Authors))
	for i, a := range p.Authors {
		authors[i] = authorResponse{
			Name:        a.Name,
			Affiliation: a.Affiliation,
			Email:       a.Email,
		}
	}

	resp := paperResponse{
		ID:            p.ID.String(),
		OwnerUID:      p.OwnerID,
		Title:         p.Title,
		Abstract:      p.Abstract,
		Authors:       authors,
		Keywords:      p.Keywords,
		FileName:      p.FileName,
		FileType:      p.FileType,
		FileSize:      p.FileSize,
		Status:        string(lifecycle.EffectiveStatus(p, now)),
		UploadedAt:    p.UploadedAt,
		SubmittedAt:   p.SubmittedAt,
		PaymentDueAt:  p.PaymentDueAt,
		PaidAt:        p.PaidAt,
		AdminFeedback: p.AdminFeedback,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}

	a := p.Assessment
	if a.PlagiarismScore != nil || a.AcceptanceProbability != nil || len(a.HighlightedSections) > 0 || a.Reasoning != "" {
		resp.Assessment = &assessmentResponse{
			PlagiarismScore:       a.PlagiarismScore,
			HighlightedSections:   a.HighlightedSections,
			AcceptanceProbability: a.AcceptanceProbability,
			Reasoning:             a.Reasoning,
		}
	}

	return resp
}

func domainUserToResponse(u *domain.User) userResponse {
	return userResponse{
		UID:          u.UID,
		DisplayName:  u.DisplayName,
		Username:     u.Username,
		Email:        u.Email,
		Phone:        u.Phone,
		Institution:  u.Institution,
		ResearcherID: u.ResearcherID,
		Role:         string(u.Role),
		Admin:        u.Admin,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// writeDomainError maps domain errors to HTTP status codes and writes a JSON
// error response. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrInvalidTransition):
		var te *domain.InvalidTransitionError
		if errors.As(err, &te) {
			writeError(w, http.StatusConflict, te.Error())
		} else {
			writeError(w, http.StatusConflict, "invalid status transition")
		}
	case errors.Is(err, domain.ErrAlreadyExists):
		var ae *domain.AlreadyExistsError
		if errors.As(err, &ae) {
			writeError(w, http.StatusConflict, ae.Error())
		} else {
			writeError(w, http.StatusConflict, "resource already exists")
		}
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
