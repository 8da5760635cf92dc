package logger

import (
	"context"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("loud", false)
	assert.ErrorContains(t, err, "invalid log level")
}

func TestNew_Development(t *testing.T) {
	l, err := New("debug", true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))
}

func TestFromContext_AddsTraceAndRequestIDs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = context.WithValue(ctx, middleware.RequestIDKey, "req-1")

	FromContext(ctx, base).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", fields["span_id"])
	assert.Equal(t, "req-1", fields["request_id"])
}

func TestFromContext_NoFields(t *testing.T) {
	base := zap.NewNop()
	assert.Same(t, base, FromContext(context.Background(), base))
}
