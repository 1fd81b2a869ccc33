package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return rec
}

func TestStartPhase(t *testing.T) {
	rec := withRecorder(t)

	ctx, root := StartPhase(context.Background(), PhaseScan)
	_, child := StartPhase(ctx, PhaseDiscoverConfigs)
	RecordCount(child, "configs", 3)
	RecordError(child, errors.New("boom"))
	child.End()
	root.End()

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "discover_configs", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())

	found := false
	for _, kv := range spans[0].Attributes() {
		if string(kv.Key) == "configs" {
			found = kv.Value.AsInt64() == 3
		}
	}
	assert.True(t, found)
}

func TestExtractIDs(t *testing.T) {
	assert.Empty(t, ExtractTraceID(context.Background()))
	assert.Empty(t, ExtractSpanID(context.Background()))

	withRecorder(t)
	ctx, span := StartPhase(context.Background(), PhaseFindings)
	defer span.End()
	assert.Len(t, ExtractTraceID(ctx), 32)
	assert.Len(t, ExtractSpanID(ctx), 16)
}

func TestRecordErrorNil(t *testing.T) {
	rec := withRecorder(t)
	_, span := StartPhase(context.Background(), PhaseForward)
	RecordError(span, nil)
	span.End()
	assert.Equal(t, codes.Unset, rec.Ended()[0].Status().Code)
}

func TestSetupTracingDisabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TracingConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupTracingEndpoint(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	shutdown, err := SetupTracing(context.Background(), TracingConfig{Endpoint: "127.0.0.1:4318", Insecure: true})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
