package contextutil

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const TraceIDKey contextKey = "traceID"
const Token contextKey = "token"

func TraceIDFromContext(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return "unknown-trace-id"
	}
	return traceID
}

// WithTraceID returns ctx carrying a trace ID, generating one if ctx has none.
func WithTraceID(ctx context.Context) (context.Context, string) {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok && traceID != "" {
		return ctx, traceID
	}
	traceID := uuid.New().String()
	return context.WithValue(ctx, TraceIDKey, traceID), traceID
}

func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, Token, token)
}

func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(Token).(string)
	return token, ok && token != ""
}
