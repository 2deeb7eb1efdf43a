package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingTracer(t *testing.T) (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return exporter, provider
}

func TestMiddleware_NilTracerPassesThrough(t *testing.T) {
	called := false
	handler := Middleware(nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.True(t, called)
}

func TestMiddleware_CreatesServerSpan(t *testing.T) {
	exporter, provider := newRecordingTracer(t)

	handler := Middleware(provider.Tracer("test"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/_pypi", nil))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Equal(t, "POST /_pypi", spans[0].Name)

	attrs := make(map[string]any)
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	require.Equal(t, "POST", attrs[AttrHTTPMethod])
	require.Equal(t, int64(http.StatusCreated), attrs[AttrHTTPStatus])
}

// Wildcard routes must produce one span name per pattern, not one per
// project, or the trace backend drowns in distinct span names.
func TestMiddleware_NamesSpanAfterRoutePattern(t *testing.T) {
	exporter, provider := newRecordingTracer(t)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{project}/packages/{package}", func(w http.ResponseWriter, r *http.Request) {})
	handler := Middleware(provider.Tracer("test"), mux)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/widget/packages/widget-1.0.tar.gz", nil))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Equal(t, "GET /{project}/packages/{package}", spans[0].Name)

	attrs := make(map[string]any)
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	require.Equal(t, "GET /{project}/packages/{package}", attrs[AttrHTTPRoute])
}

func TestMiddleware_MarksServerErrors(t *testing.T) {
	exporter, provider := newRecordingTracer(t)

	handler := Middleware(provider.Tracer("test"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/widget", nil))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Equal(t, "Error", spans[0].Status.Code.String())
}
