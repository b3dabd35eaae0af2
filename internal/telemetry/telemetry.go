// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package telemetry configures OpenTelemetry tracing for a CLI run.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/pdiddy/daily-papers/pkg/types"
)

const defaultServiceName = "daily-papers"

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// Setup installs a global tracer provider exporting over OTLP/HTTP to
// cfg.OTLPEndpoint. With no endpoint it installs nothing and returns a no-op
// shutdown, leaving the default no-op provider in place.
func Setup(ctx context.Context, cfg types.TelemetryConfig, version string) (ShutdownFunc, error) {
	if cfg.OTLPEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	tp := NewProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(Resource(cfg, version)))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// NewProvider builds a tracer provider that samples every span.
func NewProvider(opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	opts = append([]sdktrace.TracerProviderOption{sdktrace.WithSampler(sdktrace.AlwaysSample())}, opts...)
	return sdktrace.NewTracerProvider(opts...)
}

// Resource describes this process to the collector.
func Resource(cfg types.TelemetryConfig, version string) *resource.Resource {
	name := cfg.ServiceName
	if name == "" {
		name = defaultServiceName
	}
	return resource.NewSchemaless(
		attribute.String("service.name", name),
		attribute.String("service.version", version),
	)
}

// Tracer returns the named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
