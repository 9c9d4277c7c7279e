package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps the process-global OpenTelemetry tracer provider. The
// teacher's InitGlobalTracer exports spans over OTLP/gRPC
// (otlptracegrpc); this module has no OTLP collector to aim at, so spans
// are rendered as newline-delimited JSON on stdout via
// go.opentelemetry.io/otel/exporters/stdout/stdouttrace instead — the
// same "enabled/disabled, sampled" shape, a different sink.
type Tracer struct {
	provider *sdktrace.TracerProvider
}

// NewTracer builds and installs the global tracer provider.
func NewTracer(ctx context.Context, cfg TracingConfig) (*Tracer, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, fmt.Errorf("create stdout trace exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Tracer{provider: tp}, nil
}

// Start opens a span named name on the completion-pipeline tracer.
func (t *Tracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// Shutdown flushes and stops the tracer provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

const instrumentationName = "github.com/lamb-project/lamb-core"
