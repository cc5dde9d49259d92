// Package telemetry wires OpenTelemetry tracing for the CLI.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceName = "azure-topology"

	DefaultEndpoint = "localhost:4317"
)

// Exporter names accepted in OTEL_EXPORTER.
const (
	ExporterNone    = "none"
	ExporterConsole = "console"
	ExporterOTLP    = "otlp"
	ExporterBoth    = "both"
)

// Config selects where spans go.
type Config struct {
	Exporter string
	Endpoint string

	// Insecure disables TLS towards the OTLP collector.
	Insecure bool

	ServiceVersion string

	// Console is the console exporter's destination. Nil means stdout.
	Console io.Writer
}

// ConfigFromEnv reads OTEL_EXPORTER, OTEL_ENDPOINT and OTEL_INSECURE.
func ConfigFromEnv(getenv func(string) string) Config {
	cfg := Config{
		Exporter: getenv("OTEL_EXPORTER"),
		Endpoint: getenv("OTEL_ENDPOINT"),
		Insecure: true,
	}
	if cfg.Exporter == "" {
		cfg.Exporter = ExporterNone
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if v, err := strconv.ParseBool(getenv("OTEL_INSECURE")); err == nil {
		cfg.Insecure = v
	}
	return cfg
}

// Setup installs a global tracer provider. With the "none" exporter spans are
// still created but never exported.
func Setup(ctx context.Context, cfg Config) (trace.Tracer, func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporters, err := newExporters(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	for _, exporter := range exporters {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	return tp.Tracer(ServiceName), tp.Shutdown, nil
}

func newExporters(ctx context.Context, cfg Config) ([]sdktrace.SpanExporter, error) {
	var console, otlp bool
	switch cfg.Exporter {
	case "", ExporterNone:
	case ExporterConsole:
		console = true
	case ExporterOTLP:
		otlp = true
	case ExporterBoth:
		console, otlp = true, true
	default:
		return nil, fmt.Errorf("unknown OTEL_EXPORTER %q, must be one of: none, console, otlp, both", cfg.Exporter)
	}

	var exporters []sdktrace.SpanExporter
	if console {
		w := cfg.Console
		if w == nil {
			w = os.Stdout
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create console exporter: %w", err)
		}
		exporters = append(exporters, exp)
	}
	if otlp {
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = DefaultEndpoint
		}
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		exporters = append(exporters, exp)
	}
	return exporters, nil
}
