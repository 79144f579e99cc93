package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the submission service.
// Metrics are organized by subsystem: papers, payments, transitions, advisory
// assessments, and the outbox relay. All counters and histograms are registered
// via promauto for automatic registration with the default Prometheus registry.
type Metrics struct {
	// PapersSubmitted counts papers created, labeled by payment option.
	PapersSubmitted *prometheus.CounterVec

	// PaperUploadBytes observes the size of uploaded manuscript files.
	PaperUploadBytes prometheus.Histogram

	// PaperDownloads counts manuscript file downloads.
	PaperDownloads prometheus.Counter

	// PaymentsConfirmed counts successful payment confirmations.
	PaymentsConfirmed prometheus.Counter

	// PaymentsFailed counts failed payment attempts.
	PaymentsFailed prometheus.Counter

	// PaymentDuration observes simulated gateway processing time in seconds.
	PaymentDuration prometheus.Histogram

	// StatusTransitions counts lifecycle transitions, labeled by from and to status.
	StatusTransitions *prometheus.CounterVec

	// TransitionsRejected counts transitions refused as invalid, labeled by from and to status.
	TransitionsRejected *prometheus.CounterVec

	// AuthzDenied counts authorization denials, labeled by action.
	AuthzDenied *prometheus.CounterVec

	// AdvisoryRequestsTotal counts advisory LLM requests, labeled by provider and model.
	AdvisoryRequestsTotal *prometheus.CounterVec

	// AdvisoryRequestsFailed counts failed advisory LLM requests, labeled by provider, model, and error type.
	AdvisoryRequestsFailed *prometheus.CounterVec

	// AdvisoryRequestDuration observes advisory LLM request duration in seconds.
	AdvisoryRequestDuration *prometheus.HistogramVec

	// OutboxEventsPublished counts outbox events delivered to Kafka.
	OutboxEventsPublished prometheus.Counter

	// OutboxEventsFailed counts outbox publish attempts that failed.
	OutboxEventsFailed prometheus.Counter

	// OutboxEventsDeadLettered counts events that exhausted their retries.
	OutboxEventsDeadLettered prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Papers
		PapersSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_submitted_total",
			Help:      "Total number of papers submitted by payment option",
		}, []string{"payment_option"}),
		PaperUploadBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "paper_upload_bytes",
			Help:      "Size of uploaded manuscript files in bytes",
			Buckets:   []float64{1 << 16, 1 << 18, 1 << 20, 1 << 22, 1 << 23, 1 << 24, 20 << 20},
		}),
		PaperDownloads: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "paper_downloads_total",
			Help:      "Total number of manuscript file downloads",
		}),

		// Payments
		PaymentsConfirmed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_confirmed_total",
			Help:      "Total number of confirmed submission fee payments",
		}),
		PaymentsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_failed_total",
			Help:      "Total number of failed payment attempts",
		}),
		PaymentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payment_duration_seconds",
			Help:      "Duration of payment gateway calls in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 3, 5, 10},
		}),

		// Transitions
		StatusTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Total number of paper status transitions",
		}, []string{"from", "to"}),
		TransitionsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_rejected_total",
			Help:      "Total number of status transitions rejected as invalid",
		}, []string{"from", "to"}),
		AuthzDenied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authz_denied_total",
			Help:      "Total number of authorization denials by action",
		}, []string{"action"}),

		// Advisory
		AdvisoryRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "advisory_requests_total",
			Help:      "Total number of advisory LLM requests",
		}, []string{"provider", "model"}),
		AdvisoryRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "advisory_requests_failed_total",
			Help:      "Total number of failed advisory LLM requests",
		}, []string{"provider", "model", "error_type"}),
		AdvisoryRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "advisory_request_duration_seconds",
			Help:      "Duration of advisory LLM requests in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "model"}),

		// Outbox
		OutboxEventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_published_total",
			Help:      "Total number of outbox events published to Kafka",
		}),
		OutboxEventsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of failed outbox publish attempts",
		}),
		OutboxEventsDeadLettered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_dead_lettered_total",
			Help:      "Total number of outbox events that exhausted retries",
		}),
	}
}

// RecordPaperSubmitted records a newly created paper.
func (m *Metrics) RecordPaperSubmitted(paymentOption string, fileBytes int64) {
	m.PapersSubmitted.WithLabelValues(paymentOption).Inc()
	m.PaperUploadBytes.Observe(float64(fileBytes))
}

// RecordPaperDownload records a manuscript file download.
func (m *Metrics) RecordPaperDownload() {
	m.PaperDownloads.Inc()
}

// RecordPaymentConfirmed records a successful payment.
func (m *Metrics) RecordPaymentConfirmed(durationSeconds float64) {
	m.PaymentsConfirmed.Inc()
	m.PaymentDuration.Observe(durationSeconds)
}

// RecordPaymentFailed records a failed payment attempt.
func (m *Metrics) RecordPaymentFailed(durationSeconds float64) {
	m.PaymentsFailed.Inc()
	m.PaymentDuration.Observe(durationSeconds)
}

// RecordStatusTransition records an applied lifecycle transition.
func (m *Metrics) RecordStatusTransition(from, to string) {
	m.StatusTransitions.WithLabelValues(from, to).Inc()
}

// RecordTransitionRejected records a transition refused as invalid.
func (m *Metrics) RecordTransitionRejected(from, to string) {
	m.TransitionsRejected.WithLabelValues(from, to).Inc()
}

// RecordAuthzDenied records an authorization denial.
func (m *Metrics) RecordAuthzDenied(action string) {
	m.AuthzDenied.WithLabelValues(action).Inc()
}

// RecordAdvisoryRequest records an advisory LLM request.
func (m *Metrics) RecordAdvisoryRequest(provider, model string, durationSeconds float64) {
	m.AdvisoryRequestsTotal.WithLabelValues(provider, model).Inc()
	m.AdvisoryRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
}

// RecordAdvisoryRequestFailed records a failed advisory LLM request.
func (m *Metrics) RecordAdvisoryRequestFailed(provider, model, errorType string) {
	m.AdvisoryRequestsFailed.WithLabelValues(provider, model, errorType).Inc()
}

// RecordOutboxPublished records a delivered outbox event.
func (m *Metrics) RecordOutboxPublished() {
	m.OutboxEventsPublished.Inc()
}

// RecordOutboxFailed records a failed outbox publish attempt.
func (m *Metrics) RecordOutboxFailed() {
	m.OutboxEventsFailed.Inc()
}

// RecordOutboxDeadLettered records an event that exhausted retries.
func (m *Metrics) RecordOutboxDeadLettered() {
	m.OutboxEventsDeadLettered.Inc()
}
