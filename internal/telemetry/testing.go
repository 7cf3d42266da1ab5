package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// SpanRecorder captures spans from the global tracer provider during a test.
type SpanRecorder struct {
	*tracetest.SpanRecorder
}

// RecordSpans installs an in-memory tracer provider as the otel global and
// restores the previous one when tb finishes.
func RecordSpans(tb testing.TB) *SpanRecorder {
	tb.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	tb.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return &SpanRecorder{SpanRecorder: rec}
}

// Names returns the names of ended spans in end order.
func (r *SpanRecorder) Names() []string {
	spans := r.Ended()
	names := make([]string, len(spans))
	for i, s := range spans {
		names[i] = s.Name()
	}
	return names
}

// Span returns the first ended span called name, or nil.
func (r *SpanRecorder) Span(name string) sdktrace.ReadOnlySpan {
	for _, s := range r.Ended() {
		if s.Name() == name {
			return s
		}
	}
	return nil
}
