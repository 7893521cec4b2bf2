package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// newMiddleware builds a Middleware backed by a manual metric reader and an
// in-memory span exporter.
func newMiddleware(t *testing.T) (func(http.Handler) http.Handler, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	swapGlobalTracerProvider(t, tp)

	return Middleware(m), reader, exp
}

func serve(mw func(http.Handler) http.Handler, inner http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mw(inner).ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_CorrelationIDAndSpan(t *testing.T) {
	mw, _, exp := newMiddleware(t)

	var inCtx string
	rec := serve(mw, func(w http.ResponseWriter, r *http.Request) {
		inCtx = CorrelationID(r.Context())
		w.WriteHeader(http.StatusOK)
	}, httptest.NewRequest("GET", "/api/voices", nil))

	if len(inCtx) != 32 {
		t.Errorf("correlation ID in handler context = %q, want 32 hex chars", inCtx)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != inCtx {
		t.Errorf("X-Correlation-ID header = %q, want %q", got, inCtx)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Name != "HTTP GET /api/voices" {
		t.Errorf("span name = %q", spans[0].Name)
	}
}

func TestMiddleware_RecordsRequestDuration(t *testing.T) {
	mw, reader, _ := newMiddleware(t)

	serve(mw, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, httptest.NewRequest("POST", "/api/generate", nil))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	met := findMetric(rm, "kotomo.http.request.duration")
	if met == nil {
		t.Fatal("kotomo.http.request.duration not recorded")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) == 0 {
		t.Fatal("duration metric has no histogram data points")
	}

	dp := hist.DataPoints[0]
	if dp.Count != 1 {
		t.Errorf("sample count = %d, want 1", dp.Count)
	}
	var method, path string
	for _, kv := range dp.Attributes.ToSlice() {
		switch string(kv.Key) {
		case "method":
			method = kv.Value.AsString()
		case "path":
			path = kv.Value.AsString()
		}
	}
	if method != "POST" || path != "/api/generate" {
		t.Errorf("attributes = %s %s, want POST /api/generate", method, path)
	}
}

func TestMiddleware_SpanCarriesStatusCode(t *testing.T) {
	mw, _, exp := newMiddleware(t)

	rec := serve(mw, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, httptest.NewRequest("GET", "/api/audio/missing.mp3", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	var status int64
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "http.response.status_code" {
			status = a.Value.AsInt64()
		}
	}
	if status != 404 {
		t.Errorf("span http.response.status_code = %d, want 404", status)
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	mw, _, _ := newMiddleware(t)
	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"

	req := httptest.NewRequest("POST", "/api/generate/stream", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")

	var inCtx string
	rec := serve(mw, func(w http.ResponseWriter, r *http.Request) {
		inCtx = CorrelationID(r.Context())
		w.WriteHeader(http.StatusOK)
	}, req)

	if inCtx != traceID {
		t.Errorf("correlation ID = %q, want incoming trace ID %q", inCtx, traceID)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != traceID {
		t.Errorf("X-Correlation-ID header = %q, want %q", got, traceID)
	}
}

// The SSE route needs http.Flusher to survive the wrapping.
func TestMiddleware_PreservesFlusher(t *testing.T) {
	mw, _, _ := newMiddleware(t)

	var flushable bool
	serve(mw, func(w http.ResponseWriter, _ *http.Request) {
		_, flushable = w.(http.Flusher)
		w.WriteHeader(http.StatusOK)
	}, httptest.NewRequest("POST", "/api/generate/stream", nil))

	if !flushable {
		t.Error("wrapped writer does not implement http.Flusher")
	}
}
