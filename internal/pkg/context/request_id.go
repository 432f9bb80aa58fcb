// Package context carries request-scoped values through context.Context.
package context

import "context"

type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID injects ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID extracts ID.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
