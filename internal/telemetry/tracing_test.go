package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const incomingTraceparent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

// useRecorder installs a recording tracer provider for the duration of the
// test. Tests calling it must not run in parallel.
func useRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(noop.NewTracerProvider())
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func attr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestInitTracerProviderInjectsTraceContext(t *testing.T) {
	tp := InitTracerProvider(Options{ServiceName: "company-analyzer", ServiceVersion: "test", SampleRatio: 1})
	t.Cleanup(func() {
		otel.SetTracerProvider(noop.NewTracerProvider())
		_ = tp.Shutdown(context.Background())
	})

	ctx, span := Tracer().Start(context.Background(), "analyze_job_url")
	defer span.End()
	require.True(t, span.SpanContext().IsSampled())

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	assert.Contains(t, carrier.Get("traceparent"), span.SpanContext().TraceID().String())
}

func TestMiddlewareContinuesIncomingTrace(t *testing.T) {
	rec := useRecorder(t)

	var seen trace.SpanContext
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/profiles/{profile_id}", func(w http.ResponseWriter, r *http.Request) {
		seen = trace.SpanContextFromContext(r.Context())
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/profiles/abc", nil)
	req.Header.Set("traceparent", incomingTraceparent)
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, seen.IsValid())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", seen.TraceID().String())

	spans := rec.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "GET /profiles/{profile_id}", span.Name())
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())
	assert.Equal(t, "00f067aa0ba902b7", span.Parent().SpanID().String())
	assert.True(t, span.Parent().IsRemote())
	status, ok := attr(span, "http.response.status_code")
	require.True(t, ok)
	assert.Equal(t, int64(http.StatusNotFound), status.AsInt64())
	assert.Equal(t, codes.Unset, span.Status().Code)
}

func TestMiddlewareMarksServerErrors(t *testing.T) {
	rec := useRecorder(t)

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Post("/analyze", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/analyze", nil))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.False(t, spans[0].Parent().IsValid(), "a request without traceparent starts a new trace")
}

func TestEndSpanRecordsError(t *testing.T) {
	rec := useRecorder(t)

	_, span := Tracer().Start(context.Background(), "crawl_site")
	EndSpan(span, errors.New("boom"))
	_, clean := Tracer().Start(context.Background(), "fetch_page")
	EndSpan(clean, nil)

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
}

func TestTraceField(t *testing.T) {
	t.Parallel()

	assert.Equal(t, zap.Skip(), TraceField(context.Background()))

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))
	assert.Equal(t, zap.String("trace_id", "4bf92f3577b34da6a3ce929d0e0e4736"), TraceField(ctx))
}

func TestLogExporterWritesFinishedSpans(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(NewLogExporter(zap.New(core))))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, parent := tp.Tracer("test").Start(context.Background(), "analyze_job_url")
	_, child := tp.Tracer("test").Start(ctx, "extract_info")
	child.SetAttributes(attribute.Int("extracted_fields", 7))
	child.End()
	parent.End()

	entries := logs.FilterMessage("span finished").AllUntimed()
	require.Len(t, entries, 2)
	first := entries[0].ContextMap()
	assert.Equal(t, "extract_info", first["span"])
	assert.Equal(t, "7", first["attr.extracted_fields"])
	assert.Equal(t, parent.SpanContext().SpanID().String(), first["parent_span_id"])
	assert.NotContains(t, entries[1].ContextMap(), "parent_span_id")
}
