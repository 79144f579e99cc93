package httpserver

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/openscholar/submission-service/internal/auth"
	"github.com/openscholar/submission-service/internal/authz"
	"github.com/openscholar/submission-service/internal/observability"
)

// correlationIDMiddleware ensures every request has a correlation ID and
// stores it in the request context for logging and outbox metadata.
func (s *Server) correlationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = middleware.GetReqID(r.Context())
		}
		if correlationID == "" {
			buf := make([]byte, 8)
			if _, err := rand.Read(buf); err != nil {
				// Fallback to timestamp-based ID if crypto/rand fails.
				correlationID = fmt.Sprintf("%x", time.Now().UnixNano())
			} else {
				correlationID = fmt.Sprintf("%x", buf)
			}
		}

		w.Header().Set("X-Correlation-ID", correlationID)
		ctx := observability.WithRequestID(r.Context(), correlationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authMiddleware verifies the bearer token and stores the caller identity in
// the request context. It fails closed: requests without a valid token get
// 401 and never reach a handler.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.verifier == nil {
			s.logger.Error().Msg("token verifier not configured, rejecting request")
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}

		token := auth.BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := s.verifier.Verify(token)
		if err != nil {
			s.logger.Warn().Err(err).Msg("token verification failed")
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := observability.WithCaller(r.Context(), claims.UID, claims.Admin)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// callerFromRequest extracts the authenticated caller from the request
// context. Handlers behind authMiddleware always get a non-empty UID.
func callerFromRequest(r *http.Request) authz.Caller {
	uid, admin := observability.CallerFromContext(r.Context())
	return authz.Caller{UID: uid, Admin: admin}
}
