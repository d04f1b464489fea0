package middleware

// contextKey defines a type for context keys to avoid collisions.
type contextKey string

const (
	// UserIDKey is the context key for the authenticated user's ID (string).
	UserIDKey contextKey = "userID"
	// RequestIDKey holds the per-request correlation id.
	RequestIDKey contextKey = "requestID"
)
