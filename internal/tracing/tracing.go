// Package tracing builds the tracer and propagator a stage process uses for
// its whole lifetime. Nothing here touches the otel globals.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Options struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint is the OTLP gRPC collector address; empty disables export.
	Endpoint string
	Insecure bool
}

type Telemetry struct {
	Provider   trace.TracerProvider
	Tracer     trace.Tracer
	Propagator propagation.TextMapPropagator

	shutdown func(context.Context) error
}

// New builds a Telemetry with W3C trace-context and baggage propagation.
func New(ctx context.Context, opts Options) (*Telemetry, error) {
	if opts.ServiceName == "" {
		return nil, errors.New("service name is empty")
	}

	instance, err := os.Hostname()
	if err != nil {
		instance = "unknown"
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", opts.ServiceName),
		attribute.String("service.version", opts.ServiceVersion),
		attribute.String("service.instance.id", instance),
	)

	providerOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if opts.Endpoint != "" {
		exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
		if opts.Insecure {
			exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
		}

		exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("otlptracegrpc.New: %w", err)
		}
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter))
	}

	provider := sdktrace.NewTracerProvider(providerOpts...)

	return &Telemetry{
		Provider:   provider,
		Tracer:     provider.Tracer(opts.ServiceName),
		Propagator: NewPropagator(),
		shutdown:   provider.Shutdown,
	}, nil
}

// NewNoop returns a Telemetry that records nothing but still propagates context.
func NewNoop() *Telemetry {
	provider := noop.NewTracerProvider()
	return &Telemetry{
		Provider:   provider,
		Tracer:     provider.Tracer("noop"),
		Propagator: NewPropagator(),
	}
}

func NewPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
}

// Shutdown flushes pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.shutdown == nil {
		return nil
	}
	return t.shutdown(ctx)
}
