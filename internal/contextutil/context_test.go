package contextutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithTraceID(t *testing.T) {
	ctx, traceID := WithTraceID(context.Background())
	require.NotEmpty(t, traceID)
	require.Equal(t, traceID, TraceIDFromContext(ctx))

	same, again := WithTraceID(ctx)
	require.Equal(t, traceID, again)
	require.Equal(t, traceID, TraceIDFromContext(same))
}

func TestTraceIDMissing(t *testing.T) {
	require.Equal(t, "unknown-trace-id", TraceIDFromContext(context.Background()))
}

func TestToken(t *testing.T) {
	_, ok := TokenFromContext(context.Background())
	require.False(t, ok)

	token, ok := TokenFromContext(WithToken(context.Background(), "user-1"))
	require.True(t, ok)
	require.Equal(t, "user-1", token)
}
