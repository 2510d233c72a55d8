// Package correlation carries the request correlation identifier through
// context so that services, outbound clients, and emitted events can tag
// their work with the id of the request that caused it.
package correlation

import "context"

type contextKey struct{}

// WithID returns a context carrying the correlation identifier.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the correlation identifier, or "" when none is set.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}
