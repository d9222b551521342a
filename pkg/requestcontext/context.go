// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services and workers read them. Keeping the
// package free of net/http lets background jobs share the same accessors.
//
// Usage in services (read values):
//
//	userID := requestcontext.UserID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithUserID(ctx, "u-42")
package requestcontext

import (
	"context"
	"time"
)

type (
	userIDKey      struct{}
	roleKey        struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyUserID      = userIDKey{}
	ContextKeyRole        = roleKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// UserID retrieves the authenticated user ID from the context.
// Returns the empty string if not set.
func UserID(ctx context.Context) string {
	if userID, ok := ctx.Value(ContextKeyUserID).(string); ok {
		return userID
	}
	return ""
}

// WithUserID injects a user ID into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// Role retrieves the authenticated user's role from the context.
func Role(ctx context.Context) string {
	if role, ok := ctx.Value(ContextKeyRole).(string); ok {
		return role
	}
	return ""
}

// WithRole injects a role into the context.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ContextKeyRole, role)
}

// RequestID retrieves the request correlation ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service unit
// tests and for workers that need consistent time within a batch operation.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
