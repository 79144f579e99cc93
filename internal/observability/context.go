package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey   contextKey = "request_id"
	callerUIDKey   contextKey = "caller_uid"
	callerAdminKey contextKey = "caller_admin"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithCaller adds the authenticated caller's UID and admin flag to the context.
func WithCaller(ctx context.Context, uid string, admin bool) context.Context {
	ctx = context.WithValue(ctx, callerUIDKey, uid)
	ctx = context.WithValue(ctx, callerAdminKey, admin)
	return ctx
}

// CallerFromContext retrieves the caller's UID and admin flag from context.
// Returns empty string and false if not present.
func CallerFromContext(ctx context.Context) (uid string, admin bool) {
	if v := ctx.Value(callerUIDKey); v != nil {
		if id, ok := v.(string); ok {
			uid = id
		}
	}
	if v := ctx.Value(callerAdminKey); v != nil {
		if a, ok := v.(bool); ok {
			admin = a
		}
	}
	return uid, admin
}
