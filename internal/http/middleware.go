package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_pos/internal/logger"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request with its status, size and latency.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				l := logger.FromContext(r.Context(), log)
				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				}
				if ww.Status() >= http.StatusInternalServerError {
					l.Warn("request served", fields...)
					return
				}
				l.Info("request served", fields...)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
