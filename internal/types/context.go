package types

import "context"

// Context Keys
type contextKey string

const runIDKey contextKey = "run_id"

// WithRunID stores the inspection run ID in the context.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// GetRunID retrieves the run ID from the context.
func GetRunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}
