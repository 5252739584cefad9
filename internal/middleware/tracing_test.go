package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestTracingSpanNames(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodPost, "/v1/feed/rank", "POST /v1/feed/rank"},
		{http.MethodPost, "/v1/feed/views", "POST /v1/feed/views"},
		{http.MethodGet, "/health", "GET /health"},
		{http.MethodGet, "/metrics", "GET /metrics"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			recorder := newSpanRecorder(t)

			handler := Tracing("lucent-ranker")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))

			spans := recorder.Ended()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}
			if spans[0].Name() != tt.want {
				t.Errorf("expected span name %q, got %q", tt.want, spans[0].Name())
			}
		})
	}
}

func TestTracingExposesIDs(t *testing.T) {
	recorder := newSpanRecorder(t)

	var traceID, spanID string
	handler := Tracing("lucent-ranker")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = GetTraceID(r)
		spanID = GetSpanID(r)
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/feed/rank", nil))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if want := spans[0].SpanContext().TraceID().String(); traceID != want {
		t.Errorf("trace ID mismatch: got %s, want %s", traceID, want)
	}
	if want := spans[0].SpanContext().SpanID().String(); spanID != want {
		t.Errorf("span ID mismatch: got %s, want %s", spanID, want)
	}
}

func TestTraceIDsWithoutSpan(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	if id := GetTraceID(req); id != "" {
		t.Errorf("expected empty trace ID without an active span, got %q", id)
	}
	if id := GetSpanID(req); id != "" {
		t.Errorf("expected empty span ID without an active span, got %q", id)
	}
}
