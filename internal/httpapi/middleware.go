package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/mfigueredo/viptier/internal/logger"
	"github.com/mfigueredo/viptier/internal/observability"
)

// RequestLogger creates a middleware that logs the start and end of each request.
// It integrates with slog to provide structured logs including RequestID, Method,
// Path, Status, and Duration, records request metrics, and injects a
// request-scoped logger into the context for downstream handlers.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Get RequestID set by Chi's RequestID middleware
		reqID := middleware.GetReqID(r.Context())

		reqLogger := slog.Default().With(slog.String("request_id", reqID))
		ctx := logger.WithContext(r.Context(), reqLogger)

		// Wrap the ResponseWriter to capture the status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		duration := time.Since(start)
		status := ww.Status()

		observability.HTTPReqDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration.Seconds())
		observability.HTTPReqTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(status)).Inc()

		// Info for success, Warn for 4xx, Error for 5xx
		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		} else if status >= 400 {
			level = slog.LevelWarn
		}

		reqLogger.Log(ctx, level, "HTTP request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", duration.String(),
			"remote_ip", r.RemoteAddr,
		)
	})
}
