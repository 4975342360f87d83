package telemetry_test

import (
	"context"
	"testing"

	"go-dcb/pkg/dcb/telemetry"
)

func TestNoopTracerReturnsUsableSpan(t *testing.T) {
	tracer := telemetry.NoopTracer{}
	ctx, span := tracer.StartStream(context.Background(), "tags in [order:1]", 10)
	if ctx == nil {
		t.Fatal("StartStream returned a nil context")
	}
	defer span.End()

	span.RecordEvent("id-1", "order-created", []string{"order:1"})

	metadata := map[string]string{}
	span.InjectTraceContext(metadata)
	if len(metadata) != 0 {
		t.Errorf("NoopSpan.InjectTraceContext wrote keys into metadata: %v", metadata)
	}
}

func TestNoopSpanTraceContextAvailableDetectsTraceparent(t *testing.T) {
	span := telemetry.NoopSpan{}

	withoutTraceparent := map[string]string{"actor": "tester"}
	span.TraceContextAvailable(withoutTraceparent)
	if _, ok := withoutTraceparent["_trace_context"]; ok {
		t.Error("TraceContextAvailable set _trace_context with no traceparent present")
	}

	withTraceparent := map[string]string{"traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"}
	span.TraceContextAvailable(withTraceparent)
	if withTraceparent["_trace_context"] != "available" {
		t.Errorf("TraceContextAvailable did not mark a valid traceparent: %v", withTraceparent)
	}
}

func TestOtelTracerStartAppendInjectTraceContextKeepsMetadata(t *testing.T) {
	tracer := telemetry.NewOtelTracer("dcbtest")
	ctx, span := tracer.StartAppend(context.Background(), 3)
	if ctx == nil {
		t.Fatal("StartAppend returned a nil context")
	}
	defer span.End()

	metadata := map[string]string{}
	span.InjectTraceContext(metadata)
	// Without a configured span processor the span context may be invalid,
	// in which case no keys are injected; either way this must not panic
	// and must not corrupt caller-supplied metadata.
	if metadata == nil {
		t.Error("InjectTraceContext replaced the metadata map with nil")
	}
}
