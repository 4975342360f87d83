// Package telemetry implements the DCB core's telemetry hooks contract: span
// creation around Stream and Append, and trace-context round-tripping
// through stored event metadata. It deliberately stops at the contract;
// provider, exporter, and sampler wiring belong to the caller.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Tracer opens the two spans the DCB core needs: one around Stream, one
// around Append.
type Tracer interface {
	StartStream(ctx context.Context, queryString string, maxCount int) (context.Context, Span)
	StartAppend(ctx context.Context, eventCount int) (context.Context, Span)
}

// Span is the handle returned by Tracer's two entry points. It is always
// non-nil; when tracing is unavailable its methods are no-ops.
type Span interface {
	// End closes the span.
	End()
	// RecordEvent attaches a per-event span event with tags event.id,
	// event.type, event.tags, as called for by an Append.
	RecordEvent(id, eventType string, tags []string)
	// InjectTraceContext serializes the active trace context into metadata
	// under traceparent/tracestate, if a trace is active.
	InjectTraceContext(metadata map[string]string)
	// TraceContextAvailable sets metadata[dcb.TraceContextAvailableKey] to
	// "available" if metadata's traceparent/tracestate parse as a valid
	// trace context.
	TraceContextAvailable(metadata map[string]string)
}

const (
	traceContextAvailableKey   = "_trace_context"
	traceContextAvailableValue = "available"
	traceparentKey             = "traceparent"
)

// propagator is shared across all OtelTracer instances; it only does W3C
// trace-context encode/decode, no baggage.
var propagator = propagation.TraceContext{}

// OtelTracer implements Tracer on top of an OpenTelemetry tracer obtained
// from the global TracerProvider (or one the caller installs).
type OtelTracer struct {
	tracer trace.Tracer
}

// NewOtelTracer returns an OtelTracer named name (e.g. "dcb").
func NewOtelTracer(name string) OtelTracer {
	return OtelTracer{tracer: otel.Tracer(name)}
}

// StartStream opens a span named "Stream" tagged with the canonical query
// string and events.max.
func (t OtelTracer) StartStream(ctx context.Context, queryString string, maxCount int) (context.Context, Span) {
	spanCtx, span := t.tracer.Start(ctx, "Stream", trace.WithAttributes(
		attribute.String("query", queryString),
		attribute.Int("events.max", maxCount),
	))
	return spanCtx, otelSpan{span: span}
}

// StartAppend opens a span named "Append" tagged with the batch size.
func (t OtelTracer) StartAppend(ctx context.Context, eventCount int) (context.Context, Span) {
	spanCtx, span := t.tracer.Start(ctx, "Append", trace.WithAttributes(
		attribute.Int("events.count", eventCount),
	))
	return spanCtx, otelSpan{span: span, ctx: spanCtx}
}

type otelSpan struct {
	span trace.Span
	ctx  context.Context
}

func (s otelSpan) End() { s.span.End() }

func (s otelSpan) RecordEvent(id, eventType string, tags []string) {
	s.span.AddEvent("event", trace.WithAttributes(
		attribute.String("event.id", id),
		attribute.String("event.type", eventType),
		attribute.StringSlice("event.tags", tags),
	))
}

func (s otelSpan) InjectTraceContext(metadata map[string]string) {
	if !s.span.SpanContext().IsValid() {
		return
	}
	carrier := propagation.MapCarrier{}
	ctx := s.ctx
	if ctx == nil {
		ctx = trace.ContextWithSpan(context.Background(), s.span)
	}
	propagator.Inject(ctx, carrier)
	for _, key := range propagator.Fields() {
		if v, ok := carrier[key]; ok {
			metadata[key] = v
		}
	}
}

func (s otelSpan) TraceContextAvailable(metadata map[string]string) {
	applyTraceContextAvailable(metadata)
}

// applyTraceContextAvailable is shared by otelSpan and NoopSpan so both
// backends get identical read-side behavior regardless of which Tracer is
// wired in: the flag reflects whether the metadata itself decodes as a
// valid trace context, not whether a span is currently active.
func applyTraceContextAvailable(metadata map[string]string) {
	if metadata == nil {
		return
	}
	if _, ok := metadata[traceparentKey]; !ok {
		return
	}
	carrier := propagation.MapCarrier{}
	for _, key := range propagator.Fields() {
		if v, ok := metadata[key]; ok {
			carrier[key] = v
		}
	}
	spanCtx := propagator.Extract(context.Background(), carrier)
	sc := trace.SpanContextFromContext(spanCtx)
	if sc.IsValid() {
		metadata[traceContextAvailableKey] = traceContextAvailableValue
	}
}

// NoopTracer is the default Tracer: it opens no real spans and costs
// nothing. Installing an OtelTracer is opt-in.
type NoopTracer struct{}

func (NoopTracer) StartStream(ctx context.Context, _ string, _ int) (context.Context, Span) {
	return ctx, NoopSpan{}
}

func (NoopTracer) StartAppend(ctx context.Context, _ int) (context.Context, Span) {
	return ctx, NoopSpan{}
}

// NoopSpan discards everything except the trace-context-available check,
// which depends only on the metadata passed to it, not on an active span.
type NoopSpan struct{}

func (NoopSpan) End()                                       {}
func (NoopSpan) RecordEvent(string, string, []string)       {}
func (NoopSpan) InjectTraceContext(map[string]string)       {}
func (NoopSpan) TraceContextAvailable(md map[string]string) { applyTraceContextAvailable(md) }
