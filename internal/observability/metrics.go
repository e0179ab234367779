package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// RunningCounter reports how many studies currently hold a computation gate.
type RunningCounter interface {
	CountRunningComputations(ctx context.Context) (int64, error)
}

// InitMetrics initializes the OpenTelemetry metrics provider with a Prometheus
// exporter and registers the study gauges. Scrape via the /metrics endpoint.
// The returned shutdown function should be called on application exit.
func InitMetrics(counter RunningCounter) (func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := metric.NewMeterProvider(
		metric.WithReader(exporter),
	)

	otel.SetMeterProvider(provider)

	meter := provider.Meter("gridstudy")
	_, err = meter.Int64ObservableGauge(
		"gridstudy_running_computations",
		otelmetric.WithDescription("Number of studies with a computation gate held"),
		otelmetric.WithInt64Callback(func(ctx context.Context, observer otelmetric.Int64Observer) error {
			ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			n, err := counter.CountRunningComputations(ctx)
			if err != nil {
				return err
			}
			observer.Observe(n)
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register running computations gauge: %w", err)
	}

	return provider.Shutdown, nil
}
