package slacksearch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var slackSearchTracer = otel.Tracer("slackscan/slacksearch")

type scanInstruments struct {
	rows     metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

var (
	instrumentsOnce sync.Once
	instruments     *scanInstruments
)

func scanMetrics() *scanInstruments {
	instrumentsOnce.Do(func() {
		meter := otel.Meter("slackscan/slacksearch")
		inst := &scanInstruments{}
		inst.rows, _ = meter.Int64Counter("slackscan.scan.rows",
			metric.WithDescription("Rows buffered by search_slack scans"),
			metric.WithUnit("{row}"))
		inst.failures, _ = meter.Int64Counter("slackscan.scan.failures",
			metric.WithDescription("search_slack scans that failed during init"),
			metric.WithUnit("{scan}"))
		inst.duration, _ = meter.Float64Histogram("slackscan.scan.init_duration",
			metric.WithDescription("Time spent fetching and materializing a scan"),
			metric.WithUnit("s"))
		instruments = inst
	})
	return instruments
}

func recordScanMetrics(ctx context.Context, rows int, elapsed time.Duration, err error) {
	inst := scanMetrics()
	if err != nil {
		kind, _ := RootKind(err)
		if inst.failures != nil {
			inst.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind.String())))
		}
	} else if inst.rows != nil {
		inst.rows.Add(ctx, int64(rows))
	}
	if inst.duration != nil {
		inst.duration.Record(ctx, elapsed.Seconds())
	}
}

func telemetryFingerprint(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	sum := sha256.Sum256([]byte(trimmed))
	return hex.EncodeToString(sum[:8])
}
