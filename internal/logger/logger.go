// Package logger builds the service's zap logger and enriches it with request-scoped fields.
package logger

import (
	"context"
	"fmt"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func New(level string, development bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg.Level = lvl

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l, nil
}

// FromContext returns base with the trace, span and request ids found in ctx.
func FromContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	fields := make([]zap.Field, 0, 3)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()))
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		fields = append(fields, zap.String("request_id", reqID))
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
