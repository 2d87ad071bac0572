// Package observability provides operation tracking for entreaty. Every CLI
// invocation carries one operation id that logging, tracing, and receipts
// share, so a single evaluation can be correlated across all three.
package observability

import (
	"context"

	"github.com/google/uuid"
)

type opIDKey struct{}

// WithOpID generates a new operation ID and stores it in the context.
// Each CLI invocation should call this once at startup.
func WithOpID(ctx context.Context) context.Context {
	return context.WithValue(ctx, opIDKey{}, uuid.NewString())
}

// OpID retrieves the operation ID from context.
// Returns empty string if no op_id was set.
func OpID(ctx context.Context) string {
	if id, ok := ctx.Value(opIDKey{}).(string); ok {
		return id
	}
	return ""
}
