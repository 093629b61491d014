package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/gustavo-camilo/dealer-copilot/internal/tracing"
)

// untracedPaths are probe and scrape-of-our-own endpoints that would drown
// real pipeline traces.
var untracedPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/live":    true,
	"/metrics": true,
}

// Tracing adds an OpenTelemetry span per request, tagged with the tenant
// the request operates on so pipeline spans and HTTP spans line up.
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if untracedPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		// Extract trace context from headers
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		ctx, span := tracing.StartSpan(ctx, "http "+r.Method+" "+r.URL.Path)
		defer span.End()

		span.SetAttributes(
			semconv.HTTPMethod(r.Method),
			semconv.HTTPURL(r.URL.String()),
			semconv.HTTPRoute(r.URL.Path),
			attribute.String("http.client_ip", r.RemoteAddr),
			attribute.String("request_id", GetRequestID(ctx)),
		)
		if tenant := TenantFromRequest(r); tenant != "" {
			span.SetAttributes(attribute.String("tenant_id", tenant))
		}

		// Add trace ID to context for logging
		ctx = context.WithValue(ctx, TraceIDKey, tracing.TraceIDFromContext(ctx))

		wrapped := wrapResponseWriter(w)
		next.ServeHTTP(wrapped, r.WithContext(ctx))

		span.SetAttributes(semconv.HTTPStatusCode(wrapped.status))
		if wrapped.status >= 500 {
			span.SetStatus(codes.Error, http.StatusText(wrapped.status))
		}
	})
}

// TenantFromRequest pulls the tenant id a request addresses, either from a
// /api/tenants/{id}/... path or from a ?tenant= query parameter (the SSE
// stream uses the latter). A tenant named in a request body is not read.
func TenantFromRequest(r *http.Request) string {
	if t := r.URL.Query().Get("tenant"); t != "" {
		return t
	}
	const prefix = "/api/tenants/"
	if rest, ok := strings.CutPrefix(r.URL.Path, prefix); ok {
		if i := strings.IndexByte(rest, '/'); i > 0 {
			return rest[:i]
		}
		return rest
	}
	return ""
}
