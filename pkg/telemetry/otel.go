// Package telemetry wires OpenTelemetry OTLP gRPC trace export and keeps
// in-process run statistics.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Config configures trace export.
type Config struct {
	Enabled bool

	// Endpoint is the OTLP gRPC endpoint (e.g. "localhost:4317").
	Endpoint string

	ServiceName    string
	ServiceVersion string

	// Insecure disables TLS on the gRPC connection.
	Insecure bool

	// Headers are sent with every export request (auth tokens).
	Headers map[string]string

	BatchTimeout  time.Duration
	ExportTimeout time.Duration

	// SamplingRatio is the fraction of traces sampled, 0 to 1.
	SamplingRatio float64
}

// DefaultConfig returns a disabled configuration pointing at a local
// collector.
func DefaultConfig(serviceName string) Config {
	return Config{
		Endpoint:       "localhost:4317",
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Insecure:       true,
		BatchTimeout:   5 * time.Second,
		ExportTimeout:  30 * time.Second,
		SamplingRatio:  1.0,
	}
}

// ShutdownFunc flushes pending spans and closes the exporter.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Sampler maps a ratio to a sampler. Ratios at or above one sample
// everything, at or below zero nothing.
func Sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// Setup installs a global tracer provider exporting over OTLP gRPC. When
// cfg.Enabled is false the global no-op provider stays in place and the
// returned shutdown does nothing.
func Setup(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return noopShutdown, nil
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("telemetry: endpoint is required when enabled")
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.ExportTimeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(cfg.ExportTimeout))
	}
	if cfg.Insecure {
		opts = append(opts,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	var batch []sdktrace.BatchSpanProcessorOption
	if cfg.BatchTimeout > 0 {
		batch = append(batch, sdktrace.WithBatchTimeout(cfg.BatchTimeout))
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, batch...),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(cfg.SamplingRatio)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}
