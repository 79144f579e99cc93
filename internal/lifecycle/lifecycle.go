// Package lifecycle implements the status state machine governing a paper's
// progress through the review pipeline.
//
// Stored status is mutated only through this package. The "payment overdue"
// state is a read-time projection over (status, payment_due_at, now) and is
// never written to storage; see EffectiveStatus.
package lifecycle

import (
	"time"

	"github.com/openscholar/submission-service/internal/domain"
)

// DefaultPaymentWindow is how long a pay-later submission has before it is
// reported as overdue.
const DefaultPaymentWindow = 2 * time.Hour

// reviewTargets are the statuses an admin may move a non-terminal paper to.
// payment_pending -> submitted is deliberately absent: that transition only
// happens through ConfirmPayment.
var reviewTargets = map[domain.Status]bool{
	domain.StatusUnderReview:    true,
	domain.StatusActionRequired: true,
	domain.StatusAccepted:       true,
	domain.StatusRejected:       true,
	domain.StatusPublished:      true,
}

// Engine computes and applies paper status transitions.
type Engine struct {
	paymentWindow time.Duration
}

// NewEngine creates a lifecycle engine. A non-positive payment window falls
// back to DefaultPaymentWindow.
func NewEngine(paymentWindow time.Duration) *Engine {
	if paymentWindow <= 0 {
		paymentWindow = DefaultPaymentWindow
	}
	return &Engine{paymentWindow: paymentWindow}
}

// PaymentWindow returns the configured pay-later deadline window.
func (e *Engine) PaymentWindow() time.Duration {
	return e.paymentWindow
}

// Initialize sets the creation-time status fields on a new paper according to
// the chosen payment option.
//
// pay_now: the fee was charged before the record is written, so the paper is
// born submitted with paid_at and submitted_at set.
// pay_later: the paper is born payment_pending with a due time of now plus
// the payment window, and no paid/submitted timestamps.
func (e *Engine) Initialize(p *domain.Paper, option domain.PaymentOption, now time.Time) error {
	if !option.IsValid() {
		return domain.NewValidationError("payment_option", "must be pay_now or pay_later")
	}

	p.UploadedAt = now

	switch option {
	case domain.PayNow:
		p.Status = domain.StatusSubmitted
		p.PaidAt = &now
		p.SubmittedAt = &now
		p.PaymentDueAt = nil
	case domain.PayLater:
		due := now.Add(e.paymentWindow)
		p.Status = domain.StatusPaymentPending
		p.PaymentDueAt = &due
		p.PaidAt = nil
		p.SubmittedAt = nil
	}

	return nil
}

// CanConfirmPayment reports whether the paper is in a state where payment may
// be settled. Callers charging a gateway should check this before the charge
// so an ineligible paper is never billed.
func (e *Engine) CanConfirmPayment(p *domain.Paper) error {
	if p.Status != domain.StatusPaymentPending {
		return domain.NewInvalidTransitionError(p.Status, domain.StatusSubmitted)
	}
	return nil
}

// ConfirmPayment applies the payment_pending -> submitted transition after a
// successful charge. It sets paid_at and submitted_at and clears the due time.
//
// The stored status stays payment_pending past the deadline until someone
// acts, so confirmation is accepted even after the due time has elapsed.
func (e *Engine) ConfirmPayment(p *domain.Paper, now time.Time) error {
	if err := e.CanConfirmPayment(p); err != nil {
		return err
	}

	p.Status = domain.StatusSubmitted
	p.PaidAt = &now
	p.SubmittedAt = &now
	p.PaymentDueAt = nil

	return nil
}

// Transition applies an admin review transition to the given target status,
// optionally attaching feedback.
//
// Terminal states (accepted, rejected, published) admit no further
// transitions. Entering a terminal state does not clear admin_feedback or
// payment_due_at; the fields keep whatever values they had.
func (e *Engine) Transition(p *domain.Paper, target domain.Status, feedback string) error {
	if !reviewTargets[target] {
		return domain.NewInvalidTransitionError(p.Status, target)
	}
	if p.Status.IsTerminal() {
		return domain.NewInvalidTransitionError(p.Status, target)
	}
	if p.Status == target {
		return domain.NewInvalidTransitionError(p.Status, target)
	}

	p.Status = target
	if feedback != "" {
		p.AdminFeedback = feedback
	}

	return nil
}

// EffectiveStatus returns the status a reader should see: payment_overdue
// when a payment_pending paper's due time has elapsed, the stored status
// otherwise. It is a pure projection and is idempotent under repeated reads.
func EffectiveStatus(p *domain.Paper, now time.Time) domain.Status {
	if p.Status == domain.StatusPaymentPending && p.PaymentDueAt != nil && now.After(*p.PaymentDueAt) {
		return domain.StatusPaymentOverdue
	}
	return p.Status
}
