// Package httpserver provides the HTTP REST API server for the submission service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/openscholar/submission-service/internal/advisory"
	"github.com/openscholar/submission-service/internal/auth"
	"github.com/openscholar/submission-service/internal/database"
	"github.com/openscholar/submission-service/internal/lifecycle"
	"github.com/openscholar/submission-service/internal/observability"
	"github.com/openscholar/submission-service/internal/outbox"
	"github.com/openscholar/submission-service/internal/payment"
	"github.com/openscholar/submission-service/internal/repository"
)

// HealthChecker reports database health. *database.DB satisfies it.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// TransactFunc runs fn with paper and outbox repositories bound to a single
// database transaction, so a paper write and its outbox event commit or roll
// back together.
type TransactFunc func(ctx context.Context, fn func(papers repository.PaperRepository, events repository.OutboxRepository) error) error

// NewPgTransactor builds a TransactFunc over a live database connection.
func NewPgTransactor(db *database.DB) TransactFunc {
	return func(ctx context.Context, fn func(repository.PaperRepository, repository.OutboxRepository) error) error {
		return db.WithTransaction(ctx, func(tx pgx.Tx) error {
			return fn(repository.NewPgPaperRepository(tx), repository.NewPgOutboxRepository(tx))
		})
	}
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// MaxFileSize caps uploaded manuscript size in bytes.
	MaxFileSize int64

	// FeeAmount is the publication fee in minor currency units.
	FeeAmount int64

	// FeeCurrency is the ISO 4217 code for the publication fee.
	FeeCurrency string

	// AdvisoryTimeout bounds the background assessment after paper creation.
	AdvisoryTimeout time.Duration

	// AdvisoryMaxExcerptChars caps manuscript text sent to the assessor.
	AdvisoryMaxExcerptChars int
}

// Dependencies bundles everything the server needs.
type Dependencies struct {
	Papers   repository.PaperRepository
	Users    repository.UserRepository
	Transact TransactFunc
	Health   HealthChecker
	Engine   *lifecycle.Engine
	Verifier auth.Verifier
	Assessor advisory.Assessor // nil disables advisory screening
	Gateway  payment.Gateway
	Emitter  *outbox.Emitter
	Metrics  *observability.Metrics // nil disables metrics
	Logger   zerolog.Logger
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server

	papers   repository.PaperRepository
	users    repository.UserRepository
	transact TransactFunc
	health   HealthChecker
	engine   *lifecycle.Engine
	verifier auth.Verifier
	assessor advisory.Assessor
	gateway  payment.Gateway
	emitter  *outbox.Emitter
	metrics  *observability.Metrics
	validate *validator.Validate
	logger   zerolog.Logger
	cfg      Config
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(cfg Config, deps Dependencies) *Server {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 20 << 20
	}
	if cfg.AdvisoryTimeout <= 0 {
		cfg.AdvisoryTimeout = 60 * time.Second
	}

	s := &Server{
		papers:   deps.Papers,
		users:    deps.Users,
		transact: deps.Transact,
		health:   deps.Health,
		engine:   deps.Engine,
		verifier: deps.Verifier,
		assessor: deps.Assessor,
		gateway:  deps.Gateway,
		emitter:  deps.Emitter,
		metrics:  deps.Metrics,
		validate: validator.New(),
		logger:   deps.Logger.With().Str("component", "http-server").Logger(),
		cfg:      cfg,
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.correlationIDMiddleware)

	// Health endpoints (no auth)
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1", func(r chi.Router) {
		// Public availability checks used by signup forms.
		r.Get("/users/check-username", s.checkUsername)
		r.Get("/users/check-phone", s.checkPhone)

		// Everything else requires a bearer token.
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/papers", s.createPaper)
			r.Get("/papers", s.listPapers)
			r.Get("/papers/{paperID}", s.getPaper)
			r.Put("/papers/{paperID}", s.updatePaper)
			r.Post("/papers/{paperID}/pay", s.payPaper)
			r.Get("/papers/{paperID}/download", s.downloadPaper)

			r.Post("/users", s.createUser)
			r.Get("/users/{uid}", s.getUser)
			r.Put("/users/{uid}", s.updateUser)
		})
	})

	return r
}

// Router exposes the assembled handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := s.health.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler returns readiness status.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	health := s.health.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
