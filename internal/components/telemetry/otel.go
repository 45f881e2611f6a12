package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"milesfare-backend/lib/configutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	OtelConfigName = "telemetry.json5"

	setupTimeout   = 15 * time.Second
	metricInterval = 10 * time.Second
)

// OtlpEndpoint is one exporter target. A grpc endpoint wins over an http one.
type OtlpEndpoint struct {
	GrpcEndpoint string            `json:"grpc_endpoint"`
	HttpEndpoint string            `json:"http_endpoint"`
	Headers      map[string]string `json:"headers"`
}

func (e OtlpEndpoint) useGrpc() bool {
	return e.GrpcEndpoint != ""
}

func (e OtlpEndpoint) configured() bool {
	return e.GrpcEndpoint != "" || e.HttpEndpoint != ""
}

type OtelConfig struct {
	Traces  OtlpEndpoint `json:"traces"`
	Metrics OtlpEndpoint `json:"metrics"`
}

// Otel holds the installed providers, the zero value is a no-op.
type Otel struct {
	traces  *sdktrace.TracerProvider
	metrics *sdkmetric.MeterProvider
}

func (o Otel) Shutdown(ctx context.Context) error {
	var errs []error
	if o.traces != nil {
		errs = append(errs, o.traces.Shutdown(ctx))
	}
	if o.metrics != nil {
		errs = append(errs, o.metrics.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// SetupFromEnv looks for telemetry.json5 from the working directory upwards
// and installs otlp exporters from it. Without the file the global providers
// stay no-ops.
func SetupFromEnv(ctx context.Context, serviceName string) (Otel, error) {
	config, err := configutil.ReadRecursively[OtelConfig](OtelConfigName)
	if os.IsNotExist(err) {
		return Otel{}, nil
	}
	if err != nil {
		return Otel{}, fmt.Errorf("read %s: %w", OtelConfigName, err)
	}
	return SetupOtel(ctx, serviceName, config)
}

// SetupOtel installs a tracer provider and a meter provider for each
// configured endpoint.
func SetupOtel(ctx context.Context, serviceName string, config OtelConfig) (Otel, error) {
	ctx, cancel := context.WithTimeout(ctx, setupTimeout)
	defer cancel()

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return Otel{}, err
	}

	var out Otel
	if config.Traces.configured() {
		exporter, err := traceExporter(ctx, config.Traces)
		if err != nil {
			return Otel{}, fmt.Errorf("trace exporter: %w", err)
		}
		out.traces = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(out.traces)
		slog.Info("exporting traces", "grpc", config.Traces.useGrpc())
	}
	if config.Metrics.configured() {
		exporter, err := metricExporter(ctx, config.Metrics)
		if err != nil {
			return out, fmt.Errorf("metric exporter: %w", err)
		}
		out.metrics = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(metricInterval))),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(out.metrics)
		slog.Info("exporting metrics", "grpc", config.Metrics.useGrpc())
	}
	return out, nil
}

func traceExporter(ctx context.Context, e OtlpEndpoint) (sdktrace.SpanExporter, error) {
	if e.useGrpc() {
		return otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpointURL(e.GrpcEndpoint),
			otlptracegrpc.WithHeaders(e.Headers),
		)
	}
	return otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(e.HttpEndpoint),
		otlptracehttp.WithHeaders(e.Headers),
	)
}

func metricExporter(ctx context.Context, e OtlpEndpoint) (sdkmetric.Exporter, error) {
	if e.useGrpc() {
		return otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpointURL(e.GrpcEndpoint),
			otlpmetricgrpc.WithHeaders(e.Headers),
		)
	}
	return otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpointURL(e.HttpEndpoint),
		otlpmetrichttp.WithHeaders(e.Headers),
	)
}
