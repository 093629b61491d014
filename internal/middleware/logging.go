package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gustavo-camilo/dealer-copilot/internal/metrics"
	"github.com/gustavo-camilo/dealer-copilot/internal/tracing"
)

// slowRequestThreshold flags requests that sit on outbound scraping for
// longer than a dealer site should ever take. Scrape invocations are
// exempt; they legitimately run up to the dispatcher budget.
const slowRequestThreshold = 30 * time.Second

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	size        int
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.size += len(b)
	return rw.ResponseWriter.Write(b)
}

// Flush forwards flushes so SSE streaming keeps working behind the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Logging middleware with structured logging. Requests are tagged with the
// tenant they address; probe endpoints log at debug so the once-a-day
// pipeline activity stays readable.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			// Extract IDs for logging
			requestID := GetRequestID(r.Context())
			traceID := tracing.TraceIDFromContext(r.Context())
			tenantID := TenantFromRequest(r)

			// Process request
			next.ServeHTTP(wrapped, r)

			// Calculate duration
			duration := time.Since(start)

			// Record metrics
			metrics.HTTPRequestsTotal.WithLabelValues(
				r.Method,
				r.URL.Path,
				http.StatusText(wrapped.status),
			).Inc()

			metrics.HTTPRequestDuration.WithLabelValues(
				r.Method,
				r.URL.Path,
			).Observe(duration.Seconds())

			logLevel := slog.LevelInfo
			switch {
			case wrapped.status >= 500:
				logLevel = slog.LevelError
			case wrapped.status >= 400:
				logLevel = slog.LevelWarn
			case untracedPaths[r.URL.Path]:
				logLevel = slog.LevelDebug
			}

			attrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.String("trace_id", traceID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("query", r.URL.RawQuery),
				slog.Int("status", wrapped.status),
				slog.Int("size", wrapped.size),
				slog.Duration("duration", duration),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			}
			if tenantID != "" {
				attrs = append(attrs, slog.String("tenant_id", tenantID))
			}
			logger.LogAttrs(r.Context(), logLevel, "http_request", attrs...)

			// Scrape invocations and SSE streams are long-lived on purpose.
			if duration > slowRequestThreshold && r.URL.Path != "/api/scrape" && r.URL.Path != "/api/events" {
				logger.Warn("slow_request",
					slog.String("request_id", requestID),
					slog.String("path", r.URL.Path),
					slog.String("tenant_id", tenantID),
					slog.Duration("duration", duration),
				)
			}
		})
	}
}
