package logger

import (
	"context"
	"log/slog"
)

type fieldsKey struct{}

// With returns ctx carrying fields on top of the ones already attached.
// Request middleware adds trace_id and user_id this way.
func With(ctx context.Context, fields ...any) context.Context {
	prev := Fields(ctx)
	merged := make([]any, 0, len(prev)+len(fields))
	merged = append(merged, prev...)
	merged = append(merged, fields...)
	return context.WithValue(ctx, fieldsKey{}, merged)
}

// Fields returns the request fields attached to ctx.
func Fields(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	f, _ := ctx.Value(fieldsKey{}).([]any)
	return f
}

// From annotates base with the request fields of ctx. A nil base means the
// process logger.
func From(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = LoggerWrapper()
	}
	if f := Fields(ctx); len(f) > 0 {
		return base.With(f...)
	}
	return base
}
