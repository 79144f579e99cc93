package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()

	// Empty context returns empty string
	assert.Equal(t, "", RequestIDFromContext(ctx))

	ctx = WithRequestID(ctx, "req-123")
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
}

func TestCallerContext(t *testing.T) {
	ctx := context.Background()

	// Empty context returns zero values
	uid, admin := CallerFromContext(ctx)
	assert.Equal(t, "", uid)
	assert.False(t, admin)

	ctx = WithCaller(ctx, "uid-42", true)
	uid, admin = CallerFromContext(ctx)
	assert.Equal(t, "uid-42", uid)
	assert.True(t, admin)
}

func TestContextChaining(t *testing.T) {
	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithCaller(ctx, "uid-1", false)

	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	uid, admin := CallerFromContext(ctx)
	assert.Equal(t, "uid-1", uid)
	assert.False(t, admin)
}

func TestContextOverwrite(t *testing.T) {
	ctx := context.Background()
	ctx = WithRequestID(ctx, "first")
	ctx = WithRequestID(ctx, "second")

	assert.Equal(t, "second", RequestIDFromContext(ctx))
}
