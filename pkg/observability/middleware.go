package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HTTPMiddleware records a span and the http_requests_total/
// http_request_duration_seconds metrics around every request, grounded
// on the teacher's pkg/observability/middleware.go HTTPMiddleware.
func HTTPMiddleware(m *Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := r.Context()
			var span trace.Span
			if tracer := m.Tracer(); tracer != nil {
				ctx, span = tracer.Start(ctx, SpanHTTPRequest, trace.WithAttributes(
					attribute.String(AttrHTTPMethod, r.Method),
					attribute.String(AttrHTTPPath, r.URL.Path),
				))
				defer span.End()
			}

			wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			duration := time.Since(start)
			if span != nil {
				span.SetAttributes(attribute.Int(AttrHTTPStatusCode, wrapped.statusCode))
				if wrapped.statusCode >= 400 {
					span.SetAttributes(attribute.String(AttrErrorType, http.StatusText(wrapped.statusCode)))
				}
			}
			m.Metrics().RecordHTTPRequest(routeLabel(r), wrapped.statusCode, duration)
		})
	}
}

// routeLabel prefers chi's matched route pattern (set once the router
// has dispatched) so metric cardinality is bounded by route count, not
// by every distinct path clients happen to send.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
