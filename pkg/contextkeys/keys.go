// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application are defined here. This
// prevents typos, documents dependencies, and makes key usage
// discoverable.
package contextkeys

import (
	"context"

	"github.com/crewhall/crewhall/pkg/access"
	"github.com/crewhall/crewhall/pkg/auth"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// CallerKey contains *auth.Identity
	// Set by: middleware.Authenticator
	// Required by: every guard and protected endpoint
	CallerKey Key = "caller_identity"

	// SessionKey contains *access.Session
	// Set by: middleware.RequireSessionAccess after a successful fetch
	SessionKey Key = "session"

	// AccessLevelKey contains access.Level attained on the target resource
	// Set by: middleware.RequireSessionAccess / RequireProjectAccess
	AccessLevelKey Key = "access_level"

	// RequestIDKey contains the request ID string (UUID)
	// Set by: middleware.RequestID
	RequestIDKey Key = "request_id"
)

// WithCaller attaches the caller identity to the context
func WithCaller(ctx context.Context, caller *auth.Identity) context.Context {
	return context.WithValue(ctx, CallerKey, caller)
}

// Caller retrieves the caller identity; nil when unauthenticated
func Caller(ctx context.Context) *auth.Identity {
	caller, ok := ctx.Value(CallerKey).(*auth.Identity)
	if !ok {
		return nil
	}
	return caller
}

// WithSession attaches the fetched session to the context
func WithSession(ctx context.Context, session *access.Session) context.Context {
	return context.WithValue(ctx, SessionKey, session)
}

// Session retrieves the session attached by RequireSessionAccess
func Session(ctx context.Context) *access.Session {
	session, ok := ctx.Value(SessionKey).(*access.Session)
	if !ok {
		return nil
	}
	return session
}

// WithAccessLevel attaches the attained access level to the context
func WithAccessLevel(ctx context.Context, level access.Level) context.Context {
	return context.WithValue(ctx, AccessLevelKey, level)
}

// AccessLevel retrieves the attained access level; empty when no access
// guard ran
func AccessLevel(ctx context.Context) access.Level {
	level, ok := ctx.Value(AccessLevelKey).(access.Level)
	if !ok {
		return ""
	}
	return level
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID retrieves the request ID from context
func RequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
