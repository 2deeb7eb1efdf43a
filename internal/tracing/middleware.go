package tracing

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys used by the HTTP middleware.
const (
	AttrHTTPMethod = "http.method"
	AttrHTTPRoute  = "http.route"
	AttrHTTPStatus = "http.status_code"
)

// Middleware wraps an http.Handler so every request runs inside a server
// span named after the matched route pattern. A nil tracer returns the
// handler unchanged.
func Middleware(tracer trace.Tracer, next http.Handler) http.Handler {
	if tracer == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
		)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		req := r.WithContext(ctx)
		next.ServeHTTP(rec, req)

		// The mux records the matched pattern on the request it served.
		// Naming spans by pattern keeps cardinality bounded no matter how
		// many projects the registry holds.
		route := r.URL.Path
		if req.Pattern != "" {
			route = req.Pattern
			span.SetName(req.Pattern)
		}
		span.SetAttributes(
			attribute.String(AttrHTTPMethod, r.Method),
			attribute.String(AttrHTTPRoute, route),
			attribute.Int(AttrHTTPStatus, rec.status),
		)
		if rec.status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("status %d", rec.status))
		} else {
			span.SetStatus(codes.Ok, "")
		}
	})
}

// statusRecorder captures the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush forwards to the underlying writer when it supports streaming.
// The event stream handler depends on this.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
