package metrics

import (
	"context"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	otelOnce sync.Once
	otelErr  error
)

// InitOTelMetrics registers an observable gauge reporting the persisted totals. Call it after
// observability.Init so the gauge binds to the configured meter provider.
func InitOTelMetrics() error {
	otelOnce.Do(func() {
		_, otelErr = otel.Meter("slackscan/metrics").Int64ObservableGauge(
			"slackscan.scans.total",
			metric.WithDescription("Cumulative scan counters by mode (scan, rows, failure)"),
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(observeTotals),
		)
		if otelErr != nil {
			log.Printf("metrics: failed to create scan gauge: %v", otelErr)
		}
	})
	return otelErr
}

func observeTotals(_ context.Context, observer metric.Int64Observer) error {
	stats := Stats()
	for _, mode := range Modes {
		observer.Observe(stats[mode], metric.WithAttributes(attribute.String("mode", string(mode))))
	}
	return nil
}
