package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// ExportInterval is how often metrics are pushed to the collector.
const ExportInterval = 15 * time.Second

// InitMetrics initializes the global meter provider with an OTLP gRPC exporter.
// The shutdown function flushes pending data and should be called on exit.
func InitMetrics(ctx context.Context, serviceName, collectorAddr string) (func(context.Context) error, error) {
	exporter, err := otlpmetricgrpc.New(
		ctx,
		otlpmetricgrpc.WithInsecure(),
		otlpmetricgrpc.WithEndpoint(collectorAddr),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	res, err := newResource(ctx, serviceName)
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(ExportInterval))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	return provider.Shutdown, nil
}

// Metrics holds the counters recorded by the orchestrator and reconciler.
type Metrics struct {
	OrdersSubmitted  metric.Int64Counter
	ScenesSelected   metric.Int64Counter
	SubmitOutcomes   metric.Int64Counter
	OrdersReconciled metric.Int64Counter
	FilesArchived    metric.Int64Counter
}

// NewMetrics creates the counters on the meter provider mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter("github.com/kdbartholomew/flowzero-orders-cli")

	var m Metrics
	var err error
	if m.OrdersSubmitted, err = meter.Int64Counter("flowzero.orders.submitted",
		metric.WithDescription("Orders accepted by the imagery provider")); err != nil {
		return nil, err
	}
	if m.ScenesSelected, err = meter.Int64Counter("flowzero.scenes.selected",
		metric.WithDescription("Scenes chosen for submission")); err != nil {
		return nil, err
	}
	if m.SubmitOutcomes, err = meter.Int64Counter("flowzero.submit.outcomes",
		metric.WithDescription("Sub-range outcomes by kind")); err != nil {
		return nil, err
	}
	if m.OrdersReconciled, err = meter.Int64Counter("flowzero.orders.reconciled",
		metric.WithDescription("Order status checks by resulting state")); err != nil {
		return nil, err
	}
	if m.FilesArchived, err = meter.Int64Counter("flowzero.files.archived",
		metric.WithDescription("Files written to the archive")); err != nil {
		return nil, err
	}
	return &m, nil
}

// DefaultMetrics returns counters on the global meter provider, which is a
// no-op unless InitMetrics has run.
func DefaultMetrics() *Metrics {
	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		// The global provider only fails on invalid instrument names.
		panic(err)
	}
	return m
}
