package httpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openscholar/submission-service/internal/advisory"
	"github.com/openscholar/submission-service/internal/authz"
	"github.com/openscholar/submission-service/internal/domain"
	"github.com/openscholar/submission-service/internal/observability"
	"github.com/openscholar/submission-service/internal/outbox"
	"github.com/openscholar/submission-service/internal/repository"
)

// Pagination and validation constants.
const (
	defaultPageSize = 50
	maxPageSize     = 100

	// multipartFormOverhead is slack on top of the file size limit for the
	// metadata part and multipart framing.
	multipartFormOverhead = 1 << 20
)

// paperMetadataRequest is the JSON metadata part of a paper upload.
type paperMetadataRequest struct {
	Title         string          `json:"title" validate:"required,min=3,max=500"`
	Abstract      string          `json:"abstract" validate:"max=10000"`
	Authors       []authorRequest `json:"authors" validate:"required,min=1,dive"`
	Keywords      []string        `json:"keywords" validate:"max=30,dive,max=100"`
	PaymentOption string          `json:"payment_option" validate:"required,oneof=pay_now pay_later"`
}

type authorRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Affiliation string `json:"affiliation" validate:"max=300"`
	Email       string `json:"email" validate:"omitempty,email"`
}

// updatePaperRequest is the action-based body of PUT /papers/{id}.
type updatePaperRequest struct {
	Action        string `json:"action" validate:"required,oneof=review confirm_payment"`
	Status        string `json:"status,omitempty"`
	AdminFeedback string `json:"admin_feedback,omitempty"`
}

// createPaper handles POST /papers. The request is multipart form data with
// a "metadata" JSON part and a "file" part carrying the manuscript. For
// pay-now submissions the simulated charge runs before the insert, so a
// created paper is already submitted; pay-later papers start payment_pending
// with a deadline. The advisory assessment runs in the background and never
// delays or fails the response.
func (s *Server) createPaper(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := callerFromRequest(r)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+multipartFormOverhead)
	if err := r.ParseMultipartForm(s.cfg.MaxFileSize + multipartFormOverhead); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("manuscript exceeds the %d byte upload limit", s.cfg.MaxFileSize))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	var meta paperMetadataRequest
	if err := json.Unmarshal([]byte(r.FormValue("metadata")), &meta); err != nil {
		writeError(w, http.StatusBadRequest, "metadata part must be valid JSON")
		return
	}
	if err := s.validate.Struct(meta); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid metadata: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file part is required")
		return
	}
	defer file.Close()

	fileType := manuscriptMIMEType(header)
	if !domain.IsAllowedFileType(fileType) {
		writeError(w, http.StatusUnsupportedMediaType, "only PDF and DOCX manuscripts are accepted")
		return
	}

	fileData, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxFileSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read manuscript file")
		return
	}
	if int64(len(fileData)) > s.cfg.MaxFileSize {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("manuscript exceeds the %d byte upload limit", s.cfg.MaxFileSize))
		return
	}
	if len(fileData) == 0 {
		writeError(w, http.StatusBadRequest, "manuscript file is empty")
		return
	}

	authors := make([]domain.Author, len(meta.Authors))
	for i, a := range meta.Authors {
		authors[i] = domain.Author{Name: a.Name, Affiliation: a.Affiliation, Email: a.Email}
	}

	now := time.Now().UTC()
	paper := &domain.Paper{
		ID:         uuid.New(),
		OwnerID:    caller.UID,
		Title:      strings.TrimSpace(meta.Title),
		Abstract:   meta.Abstract,
		Authors:    authors,
		Keywords:   meta.Keywords,
		FileName:   header.Filename,
		FileType:   fileType,
		FileData:   fileData,
		UploadedAt: now,
	}

	option := domain.PaymentOption(meta.PaymentOption)

	// Pay-now settles the fee before anything is stored.
	var receipt *paymentReceipt
	if option == domain.PayNow {
		rec, chargeErr := s.gateway.Charge(ctx, s.cfg.FeeAmount, s.cfg.FeeCurrency)
		if chargeErr != nil {
			s.logger.Error().Err(chargeErr).Msg("publication fee charge failed")
			writeError(w, http.StatusServiceUnavailable, "payment processing failed")
			return
		}
		receipt = &paymentReceipt{TransactionID: rec.TransactionID, Amount: rec.Amount, Currency: rec.Currency}
	}

	if err := s.engine.Initialize(paper, option, now); err != nil {
		writeDomainError(w, err)
		return
	}

	correlationID := observability.RequestIDFromContext(ctx)
	err = s.transact(ctx, func(papers repository.PaperRepository, events repository.OutboxRepository) error {
		if _, createErr := papers.Create(ctx, paper); createErr != nil {
			return createErr
		}

		event, emitErr := s.emitter.Emit(outbox.EmitParams{
			PaperID:   paper.ID,
			EventType: outbox.EventTypePaperSubmitted,
			Payload: outbox.SubmittedPayload{
				PaperID:       paper.ID.String(),
				OwnerUID:      paper.OwnerID,
				Title:         paper.Title,
				PaymentOption: string(option),
			},
			CorrelationID: correlationID,
		})
		if emitErr != nil {
			return emitErr
		}
		return events.Insert(ctx, event)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordPaperSubmitted(string(option), paper.FileSize)
	}

	logger := observability.WithPaperContext(s.logger, paper.ID.String(), paper.OwnerID)
	entry := logger.Info().
		Str("status", string(paper.Status)).
		Str("payment_option", string(option)).
		Int64("file_size", paper.FileSize)
	if receipt != nil {
		entry = entry.Str("transaction_id", receipt.TransactionID)
	}
	entry.Msg("paper created")

	s.screenInBackground(paper)

	writeJSON(w, http.StatusCreated, domainPaperToResponse(paper, now))
}

type paymentReceipt struct {
	TransactionID string
	Amount        int64
	Currency      string
}

// screenInBackground runs the advisory assessment without blocking the
// request. A failure is logged and counted, never surfaced to the author.
func (s *Server) screenInBackground(paper *domain.Paper) {
	if s.assessor == nil {
		return
	}

	req := advisory.AssessmentRequest{
		Title:    paper.Title,
		Abstract: paper.Abstract,
		Keywords: paper.Keywords,
		Excerpt:  advisory.TruncateExcerpt(string(paper.FileData), s.cfg.AdvisoryMaxExcerptChars),
	}
	for _, a := range paper.Authors {
		req.Authors = append(req.Authors, a.Name)
	}
	paperID := paper.ID

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.AdvisoryTimeout)
		defer cancel()

		logger := observability.WithAdvisoryContext(s.logger, s.assessor.Provider(), s.assessor.Model())
		start := time.Now()

		assessment, err := s.assessor.Assess(ctx, req)
		if err != nil {
			if s.metrics != nil {
				s.metrics.RecordAdvisoryRequestFailed(s.assessor.Provider(), s.assessor.Model(), "assess")
			}
			logger.Warn().Err(err).Str("paper_id", paperID.String()).Msg("advisory screening failed")
			return
		}

		if s.metrics != nil {
			s.metrics.RecordAdvisoryRequest(s.assessor.Provider(), s.assessor.Model(), time.Since(start).Seconds())
		}

		if err := s.papers.UpdateAssessment(ctx, paperID, *assessment); err != nil {
			logger.Warn().Err(err).Str("paper_id", paperID.String()).Msg("failed to store assessment")
			return
		}

		err = s.transact(ctx, func(_ repository.PaperRepository, events repository.OutboxRepository) error {
			event, emitErr := s.emitter.Emit(outbox.EmitParams{
				PaperID:   paperID,
				EventType: outbox.EventTypePaperAssessed,
				Payload: outbox.AssessedPayload{
					PaperID:               paperID.String(),
					Provider:              s.assessor.Provider(),
					PlagiarismScore:       assessment.PlagiarismScore,
					AcceptanceProbability: assessment.AcceptanceProbability,
				},
			})
			if emitErr != nil {
				return emitErr
			}
			return events.Insert(ctx, event)
		})
		if err != nil {
			logger.Warn().Err(err).Str("paper_id", paperID.String()).Msg("failed to record assessment event")
		}
	}()
}

// listPapers handles GET /papers. Admins see everything; other callers see
// their own papers plus published ones. Optional filters: status, author
// (name substring), mine=true.
func (s *Server) listPapers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := callerFromRequest(r)

	limit, offset := parsePaginationParams(r)
	filter := repository.PaperFilter{Limit: limit, Offset: offset}

	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		status := domain.Status(statusParam)
		filter.Status = &status
	}
	if author := r.URL.Query().Get("author"); author != "" {
		filter.AuthorName = &author
	}

	mine := r.URL.Query().Get("mine") == "true"
	switch {
	case mine:
		uid := caller.UID
		filter.OwnerID = &uid
	case !caller.Admin:
		uid := caller.UID
		filter.VisibleTo = &uid
	}

	papers, totalCount, err := s.papers.List(ctx, filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	now := time.Now().UTC()
	responses := make([]paperResponse, len(papers))
	for i, p := range papers {
		responses[i] = domainPaperToResponse(p, now)
	}

	writeJSON(w, http.StatusOK, listPapersResponse{
		Papers:        responses,
		NextPageToken: encodePageToken(offset, limit, int(totalCount)),
		TotalCount:    int(totalCount),
	})
}

// getPaper handles GET /papers/{paperID}.
func (s *Server) getPaper(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := callerFromRequest(r)

	paperID, ok := parseUUID(w, chi.URLParam(r, "paperID"), "paper_id")
	if !ok {
		return
	}

	paper, err := s.papers.GetByID(ctx, paperID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.authorize(caller, paper, authz.ActionRead); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainPaperToResponse(paper, time.Now().UTC()))
}

// updatePaper handles PUT /papers/{paperID}. The body selects an action:
// "review" applies an admin status transition with optional feedback;
// "confirm_payment" settles a pay-later submission.
func (s *Server) updatePaper(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := callerFromRequest(r)

	paperID, ok := parseUUID(w, chi.URLParam(r, "paperID"), "paper_id")
	if !ok {
		return
	}

	var req updatePaperRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	switch req.Action {
	case "review":
		s.reviewPaper(ctx, w, caller, paperID, domain.Status(req.Status), req.AdminFeedback)
	case "confirm_payment":
		s.confirmPayment(ctx, w, caller, paperID)
	}
}

// payPaper handles POST /papers/{paperID}/pay.
func (s *Server) payPaper(w http.ResponseWriter, r *http.Request) {
	caller := callerFromRequest(r)

	paperID, ok := parseUUID(w, chi.URLParam(r, "paperID"), "paper_id")
	if !ok {
		return
	}

	s.confirmPayment(r.Context(), w, caller, paperID)
}

// reviewPaper applies an admin lifecycle transition.
func (s *Server) reviewPaper(ctx context.Context, w http.ResponseWriter, caller authz.Caller, paperID uuid.UUID, target domain.Status, feedback string) {
	paper, err := s.papers.GetByID(ctx, paperID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.authorize(caller, paper, authz.ActionReview); err != nil {
		writeDomainError(w, err)
		return
	}

	from := paper.Status
	if err := s.engine.Transition(paper, target, feedback); err != nil {
		if s.metrics != nil && errors.Is(err, domain.ErrInvalidTransition) {
			s.metrics.RecordTransitionRejected(string(from), string(target))
		}
		writeDomainError(w, err)
		return
	}

	correlationID := observability.RequestIDFromContext(ctx)
	err = s.transact(ctx, func(papers repository.PaperRepository, events repository.OutboxRepository) error {
		if _, updateErr := papers.Update(ctx, paper); updateErr != nil {
			return updateErr
		}

		event, emitErr := s.emitter.Emit(outbox.EmitParams{
			PaperID:   paper.ID,
			EventType: outbox.EventTypeStatusChanged,
			Payload: outbox.StatusChangedPayload{
				PaperID:    paper.ID.String(),
				OwnerUID:   paper.OwnerID,
				FromStatus: string(from),
				ToStatus:   string(paper.Status),
			},
			CorrelationID: correlationID,
		})
		if emitErr != nil {
			return emitErr
		}
		return events.Insert(ctx, event)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordStatusTransition(string(from), string(paper.Status))
	}

	logger := observability.WithPaperContext(s.logger, paper.ID.String(), paper.OwnerID)
	logger.Info().
		Str("from", string(from)).
		Str("to", string(paper.Status)).
		Msg("paper status changed")

	writeJSON(w, http.StatusOK, domainPaperToResponse(paper, time.Now().UTC()))
}

// confirmPayment settles the publication fee for a pay-later paper and moves
// it to submitted. Allowed even past the payment deadline: the stored status
// stays payment_pending until someone acts, so late payment still completes
// the submission.
func (s *Server) confirmPayment(ctx context.Context, w http.ResponseWriter, caller authz.Caller, paperID uuid.UUID) {
	paper, err := s.papers.GetByID(ctx, paperID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.authorize(caller, paper, authz.ActionConfirmPayment); err != nil {
		writeDomainError(w, err)
		return
	}

	// Reject ineligible papers before touching the gateway so nobody is
	// billed for a paper that cannot be settled.
	if err := s.engine.CanConfirmPayment(paper); err != nil {
		writeDomainError(w, err)
		return
	}

	start := time.Now()
	receipt, err := s.gateway.Charge(ctx, s.cfg.FeeAmount, s.cfg.FeeCurrency)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordPaymentFailed(time.Since(start).Seconds())
		}
		s.logger.Error().Err(err).Str("paper_id", paper.ID.String()).Msg("publication fee charge failed")
		writeError(w, http.StatusServiceUnavailable, "payment processing failed")
		return
	}

	now := time.Now().UTC()
	if err := s.engine.ConfirmPayment(paper, now); err != nil {
		writeDomainError(w, err)
		return
	}

	correlationID := observability.RequestIDFromContext(ctx)
	err = s.transact(ctx, func(papers repository.PaperRepository, events repository.OutboxRepository) error {
		if _, updateErr := papers.Update(ctx, paper); updateErr != nil {
			return updateErr
		}

		event, emitErr := s.emitter.Emit(outbox.EmitParams{
			PaperID:   paper.ID,
			EventType: outbox.EventTypePaymentConfirmed,
			Payload: outbox.PaymentConfirmedPayload{
				PaperID:       paper.ID.String(),
				OwnerUID:      paper.OwnerID,
				TransactionID: receipt.TransactionID,
				Amount:        receipt.Amount,
				Currency:      receipt.Currency,
			},
			CorrelationID: correlationID,
		})
		if emitErr != nil {
			return emitErr
		}
		return events.Insert(ctx, event)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordPaymentConfirmed(time.Since(start).Seconds())
	}

	logger := observability.WithPaperContext(s.logger, paper.ID.String(), paper.OwnerID)
	logger.Info().
		Str("transaction_id", receipt.TransactionID).
		Msg("publication fee confirmed")

	writeJSON(w, http.StatusOK, payResponse{
		PaperID:       paper.ID.String(),
		Status:        string(paper.Status),
		TransactionID: receipt.TransactionID,
		Amount:        receipt.Amount,
		Currency:      receipt.Currency,
		PaidAt:        paper.PaidAt,
	})
}

// downloadPaper handles GET /papers/{paperID}/download.
func (s *Server) downloadPaper(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := callerFromRequest(r)

	paperID, ok := parseUUID(w, chi.URLParam(r, "paperID"), "paper_id")
	if !ok {
		return
	}

	paper, err := s.papers.GetByID(ctx, paperID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.authorize(caller, paper, authz.ActionRead); err != nil {
		writeDomainError(w, err)
		return
	}

	data, err := s.papers.GetFile(ctx, paperID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordPaperDownload()
	}

	w.Header().Set("Content-Type", paper.FileType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", paper.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// authorize runs the access decision and counts denials.
func (s *Server) authorize(caller authz.Caller, paper *domain.Paper, action authz.Action) error {
	err := authz.Authorize(caller, paper.OwnerID, paper.Status, action)
	if err != nil && s.metrics != nil {
		s.metrics.RecordAuthzDenied(string(action))
	}
	return err
}

// manuscriptMIMEType determines the upload's MIME type from the part header,
// falling back to the file extension when the client sent a generic type.
func manuscriptMIMEType(header *multipart.FileHeader) string {
	contentType := header.Header.Get("Content-Type")
	if domain.IsAllowedFileType(contentType) {
		return contentType
	}

	name := strings.ToLower(header.Filename)
	switch {
	case strings.HasSuffix(name, ".pdf"):
		return domain.MIMETypePDF
	case strings.HasSuffix(name, ".docx"):
		return domain.MIMETypeDOCX
	default:
		return contentType
	}
}

// parseUUID parses a UUID from a string, writing a 400 error response if
// invalid. The parse error details are not echoed back.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}

// parsePaginationParams extracts page_size and page_token from query
// parameters, applying default and maximum bounds to the page size.
func parsePaginationParams(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if pageSizeStr := r.URL.Query().Get("page_size"); pageSizeStr != "" {
		if parsed, err := strconv.Atoi(pageSizeStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if pageToken := r.URL.Query().Get("page_token"); pageToken != "" {
		decoded, err := base64.StdEncoding.DecodeString(pageToken)
		if err == nil {
			if parsed, parseErr := strconv.Atoi(string(decoded)); parseErr == nil && parsed > 0 {
				offset = parsed
			}
		}
	}

	return limit, offset
}

// encodePageToken encodes the next offset as a base64 page token. Returns an
// empty string when there are no more results.
func encodePageToken(offset, limit, totalCount int) string {
	nextOffset := offset + limit
	if nextOffset < totalCount {
		return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(nextOffset)))
	}
	return ""
}
