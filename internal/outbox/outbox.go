// Package outbox implements the transactional outbox for submission events.
//
// Paper state changes are recorded as outbox events in the same database
// transaction as the paper write, then published to Kafka by the Relay. This
// guarantees that an event is emitted if and only if the state change
// committed.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types emitted for paper lifecycle changes.
const (
	EventTypePaperSubmitted   = "paper.submitted"
	EventTypePaymentConfirmed = "paper.payment_confirmed"
	EventTypeStatusChanged    = "paper.status_changed"
	EventTypePaperAssessed    = "paper.assessed"
)

// AggregateTypePaper is the aggregate type for paper events.
const AggregateTypePaper = "paper"

// defaultMaxAttempts is the default maximum number of delivery attempts.
const defaultMaxAttempts = 5

// EventStatus tracks an event's position in the delivery pipeline.
type EventStatus string

const (
	// EventStatusPending means the event has not been published yet.
	EventStatusPending EventStatus = "pending"

	// EventStatusPublished means the event was delivered to the broker.
	EventStatusPublished EventStatus = "published"

	// EventStatusDead means delivery failed MaxAttempts times.
	EventStatusDead EventStatus = "dead"
)

// Event is a single outbox entry awaiting delivery.
type Event struct {
	// ID uniquely identifies the event.
	ID uuid.UUID

	// AggregateType is the kind of entity the event concerns.
	AggregateType string

	// AggregateID identifies the entity, used as the Kafka partition key.
	AggregateID string

	// EventType classifies the event (e.g., "paper.submitted").
	EventType string

	// Payload is the JSON-serialized event body.
	Payload []byte

	// Metadata is the JSON-serialized delivery metadata.
	Metadata []byte

	// Status is the delivery status.
	Status EventStatus

	// Attempts counts delivery attempts so far.
	Attempts int

	// MaxAttempts caps delivery attempts before dead-lettering.
	MaxAttempts int

	// LastError records the most recent delivery failure.
	LastError string

	// CreatedAt is when the event was enqueued.
	CreatedAt time.Time

	// PublishedAt is when the event was delivered, if it was.
	PublishedAt *time.Time
}

// Metadata carries delivery context attached to every event.
type Metadata struct {
	// Source identifies the emitting service.
	Source string `json:"source"`

	// CorrelationID links the event to the originating HTTP request.
	CorrelationID string `json:"correlation_id,omitempty"`

	// EmittedAt is when the event was built.
	EmittedAt time.Time `json:"emitted_at"`
}

// EmitParams contains the parameters for building an event.
type EmitParams struct {
	// PaperID is the paper UUID (aggregate ID).
	PaperID uuid.UUID
	// EventType is the type of event (e.g., "paper.submitted").
	EventType string
	// Payload is the event payload that will be JSON-serialized.
	Payload interface{}
	// CorrelationID for request tracing (optional).
	CorrelationID string
}

// Emitter builds outbox events enriched with service context.
type Emitter struct {
	serviceName string
	now         func() time.Time
}

// NewEmitter creates a new Emitter. An empty serviceName falls back to
// "submission-service".
func NewEmitter(serviceName string) *Emitter {
	if serviceName == "" {
		serviceName = "submission-service"
	}
	return &Emitter{
		serviceName: serviceName,
		now:         time.Now,
	}
}

// Emit builds an outbox Event from the given parameters. The event is ready
// to be inserted into the outbox table.
func (e *Emitter) Emit(params EmitParams) (*Event, error) {
	if params.PaperID == uuid.Nil {
		return nil, fmt.Errorf("paper_id is required")
	}
	if params.EventType == "" {
		return nil, fmt.Errorf("event_type is required")
	}

	payloadBytes, err := json.Marshal(params.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	metadataBytes, err := json.Marshal(Metadata{
		Source:        e.serviceName,
		CorrelationID: params.CorrelationID,
		EmittedAt:     e.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	return &Event{
		ID:            uuid.New(),
		AggregateType: AggregateTypePaper,
		AggregateID:   params.PaperID.String(),
		EventType:     params.EventType,
		Payload:       payloadBytes,
		Metadata:      metadataBytes,
		Status:        EventStatusPending,
		MaxAttempts:   defaultMaxAttempts,
		CreatedAt:     e.now().UTC(),
	}, nil
}

// StatusChangedPayload is the body of paper.status_changed events.
type StatusChangedPayload struct {
	PaperID    string `json:"paper_id"`
	OwnerUID   string `json:"owner_uid"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
}

// SubmittedPayload is the body of paper.submitted events.
type SubmittedPayload struct {
	PaperID       string `json:"paper_id"`
	OwnerUID      string `json:"owner_uid"`
	Title         string `json:"title"`
	PaymentOption string `json:"payment_option"`
}

// PaymentConfirmedPayload is the body of paper.payment_confirmed events.
type PaymentConfirmedPayload struct {
	PaperID       string `json:"paper_id"`
	OwnerUID      string `json:"owner_uid"`
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
}

// AssessedPayload is the body of paper.assessed events.
type AssessedPayload struct {
	PaperID               string   `json:"paper_id"`
	Provider              string   `json:"provider"`
	PlagiarismScore       *float64 `json:"plagiarism_score,omitempty"`
	AcceptanceProbability *float64 `json:"acceptance_probability,omitempty"`
}
