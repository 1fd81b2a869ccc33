package observability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the OpenTelemetry tracer name.
	TracerName = "mcpscope"
)

// Phase names one stage of a scan.
type Phase string

const (
	PhaseScan              Phase = "scan"
	PhaseDiscoverConfigs   Phase = "discover_configs"
	PhaseDiscoverProcesses Phase = "discover_processes"
	PhaseFindings          Phase = "generate_findings"
	PhaseWriteSnapshot     Phase = "write_snapshot"
	PhaseForward           Phase = "forward_snapshot"
)

func (p Phase) String() string { return string(p) }

// StartPhase starts a span for one scan phase.
func StartPhase(ctx context.Context, phase Phase, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, phase.String(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// RecordCount records how many items a phase produced.
func RecordCount(span trace.Span, key string, n int) {
	span.SetAttributes(attribute.Int(key, n))
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// ExtractTraceID extracts the trace ID from a context.
func ExtractTraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// ExtractSpanID extracts the span ID from a context.
func ExtractSpanID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.SpanID().String()
}

// TracingConfig configures OTLP/HTTP trace export.
type TracingConfig struct {
	// Endpoint is host:port or a full URL of the OTLP/HTTP collector.
	Endpoint       string
	Insecure       bool
	Headers        map[string]string
	ServiceVersion string
	Timeout        time.Duration
}

// SetupTracing installs a global tracer provider exporting to cfg.Endpoint.
// With no endpoint it leaves the no-op provider in place. The returned
// function flushes and shuts the provider down.
func SetupTracing(ctx context.Context, cfg TracingConfig) (func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithTimeout(timeout)}
	if strings.Contains(cfg.Endpoint, "://") {
		opts = append(opts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp trace exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", TracerName),
		attribute.String("service.version", cfg.ServiceVersion),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
