package observability

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/sims/pkg/contextkeys"
)

// RequestIDHeader carries the request ID in and out
const RequestIDHeader = "X-Request-ID"

// RequestLoggingMiddleware assigns a request ID, stores a request-scoped
// logger in the context and logs each completed request
func RequestLoggingMiddleware(logger *Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = NewLogger(InfoLevel, nil)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			reqLogger := logger.WithFields(map[string]interface{}{
				"method": r.Method,
				"path":   r.URL.Path,
			})
			ctx := contextkeys.WithRequestID(r.Context(), requestID)
			ctx = WithLogger(ctx, reqLogger)
			reqLogger = UpdateLoggerWithTraceContext(ctx, reqLogger.WithField("request_id", requestID))

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r.WithContext(ctx))

			reqLogger.WithFields(map[string]interface{}{
				"status":      rw.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
			}).Info("request completed")
		})
	}
}
