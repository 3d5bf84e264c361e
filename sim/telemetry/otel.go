// Package telemetry exports engine spans over OTLP gRPC.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Config configures the OTLP exporter.
type Config struct {
	// Endpoint is the collector address, e.g. "localhost:4317". Empty
	// disables export.
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	RunID          string
	Insecure       bool
	BatchTimeout   time.Duration
	ExportTimeout  time.Duration
}

// DefaultConfig returns an insecure local configuration for endpoint.
func DefaultConfig(endpoint string) Config {
	return Config{
		Endpoint:       endpoint,
		ServiceName:    "vivid-sim",
		ServiceVersion: "dev",
		Insecure:       true,
		BatchTimeout:   5 * time.Second,
		ExportTimeout:  30 * time.Second,
	}
}

// Shutdown flushes and stops the exporter.
type Shutdown func(context.Context) error

func noop(context.Context) error { return nil }

// Init installs a global tracer provider exporting to cfg.Endpoint. With an
// empty endpoint it leaves the no-op provider in place.
func Init(ctx context.Context, cfg Config) (Shutdown, error) {
	if cfg.Endpoint == "" {
		return noop, nil
	}
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTimeout(cfg.ExportTimeout),
	}
	if cfg.Insecure {
		opts = append(opts,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}
	if cfg.RunID != "" {
		attrs = append(attrs, attribute.String("sim.run_id", cfg.RunID))
	}
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL, attrs...))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(cfg.BatchTimeout)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
