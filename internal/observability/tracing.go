// Package observability provides OpenTelemetry instrumentation for tracing and metrics.
package observability

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ServiceName identifies flowzero in exported telemetry.
const ServiceName = "flowzero-orders"

// Version is stamped at build time with -ldflags "-X ...observability.Version=...".
var Version = "dev"

// InitTracer initializes the global trace provider.
// It returns a shutdown function that should be called on app exit.
func InitTracer(ctx context.Context, serviceName, collectorAddr string) (func(context.Context) error, error) {
	exporter, err := otlptracegrpc.New(
		ctx,
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithEndpoint(collectorAddr),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := newResource(ctx, serviceName)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}),
	)

	return tp.Shutdown, nil
}

func newResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(Version),
		),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// CollectorAddr turns an OTEL_EXPORTER_OTLP_ENDPOINT style URL into the
// host:port form the gRPC exporters dial.
func CollectorAddr(endpoint string) string {
	addr := strings.TrimSpace(endpoint)
	for _, scheme := range []string{"http://", "https://", "grpc://"} {
		addr = strings.TrimPrefix(addr, scheme)
	}
	return strings.TrimSuffix(addr, "/")
}

// Setup initializes tracing and metrics when endpoint is set. With an empty
// endpoint the global no-op providers stay in place and shutdown does nothing.
func Setup(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	endpoint = CollectorAddr(endpoint)
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	shutdownTracer, err := InitTracer(ctx, ServiceName, endpoint)
	if err != nil {
		return nil, err
	}
	shutdownMetrics, err := InitMetrics(ctx, ServiceName, endpoint)
	if err != nil {
		_ = shutdownTracer(ctx)
		return nil, err
	}

	return func(ctx context.Context) error {
		terr := shutdownTracer(ctx)
		merr := shutdownMetrics(ctx)
		if terr != nil {
			return terr
		}
		return merr
	}, nil
}
