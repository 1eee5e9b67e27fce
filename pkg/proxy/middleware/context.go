// Package middleware provides the HTTP middleware chain shared by the
// proxy and admin servers: panic recovery, request IDs, and structured
// request logging.
package middleware

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// Context keys for storing values in request context.
const (
	// RequestIDKey stores the unique request ID.
	RequestIDKey contextKey = "request_id"
)
