// Package payment provides the publication-fee charging gateway.
//
// The current implementation is a simulated gateway: it always succeeds after
// a configurable processing delay. The Gateway interface keeps the rest of
// the service decoupled from the simulation so a real payment provider can be
// dropped in later.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Receipt records the outcome of a completed charge.
type Receipt struct {
	// TransactionID uniquely identifies the charge.
	TransactionID string

	// Amount is the charged amount in minor currency units.
	Amount int64

	// Currency is the ISO 4217 currency code.
	Currency string

	// ChargedAt is when the charge completed.
	ChargedAt time.Time
}

// Gateway charges publication fees.
type Gateway interface {
	// Charge processes a payment of amount minor units in the given
	// currency. It blocks for the duration of processing and respects
	// context cancellation.
	Charge(ctx context.Context, amount int64, currency string) (*Receipt, error)
}

// SimulatedGateway is a Gateway that approves every charge after a fixed
// processing delay.
type SimulatedGateway struct {
	delay time.Duration
	now   func() time.Time
}

// NewSimulatedGateway creates a simulated gateway with the given processing
// delay. A negative delay is treated as zero.
func NewSimulatedGateway(delay time.Duration) *SimulatedGateway {
	if delay < 0 {
		delay = 0
	}
	return &SimulatedGateway{
		delay: delay,
		now:   time.Now,
	}
}

// Charge simulates payment processing. It waits for the configured delay,
// then returns a receipt with a fresh transaction ID. A cancelled context
// aborts the charge.
func (g *SimulatedGateway) Charge(ctx context.Context, amount int64, currency string) (*Receipt, error) {
	if amount < 0 {
		return nil, fmt.Errorf("charge amount must not be negative, got %d", amount)
	}
	if currency == "" {
		return nil, fmt.Errorf("charge currency is required")
	}

	if g.delay > 0 {
		timer := time.NewTimer(g.delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("payment cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return &Receipt{
		TransactionID: "sim_" + uuid.NewString(),
		Amount:        amount,
		Currency:      currency,
		ChargedAt:     g.now().UTC(),
	}, nil
}
