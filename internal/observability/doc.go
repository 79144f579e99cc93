// Package observability provides logging, metrics, and context propagation
// support for the submission service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for submissions, payments, and assessments
//   - Context helpers for propagating request data
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("request_id", reqID).Msg("paper submitted")
//
// Add paper context to logger:
//
//	logger = observability.WithPaperContext(logger, paperID, ownerUID)
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("submission")
//
// Record metrics:
//
//	metrics.RecordPaperSubmitted("pay_now")
//	metrics.RecordStatusTransition("submitted", "under_review")
//
// # Context Helpers
//
// Store and retrieve request context:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithCaller(ctx, uid, isAdmin)
//
//	reqID := observability.RequestIDFromContext(ctx)
//	uid, isAdmin := observability.CallerFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - caller_uid: Authenticated user identifier
//   - paper_id: Paper identifier
//   - owner_uid: Paper owner identifier
//   - status: Paper lifecycle status
//   - provider: Advisory LLM provider (openai, anthropic)
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
