package qcache

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// metrics holds the engine's OpenTelemetry instruments.
type metrics struct {
	queries      metric.Int64Counter
	hits         metric.Int64Counter
	staleServes  metric.Int64Counter
	loaderErrors metric.Int64Counter
	verifyTotal  metric.Int64Counter
	verifyStale  metric.Int64Counter
	loaderDur    metric.Float64Histogram
}

// newMetrics creates the engine instruments from the given meter provider.
// A nil provider yields no-op instruments.
func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter("github.com/jonwraymond/qcache")

	queries, err := meter.Int64Counter(
		"cache.query.total",
		metric.WithDescription("Total number of query calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	hits, err := meter.Int64Counter(
		"cache.query.hits",
		metric.WithDescription("Queries answered from a fresh entry"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	staleServes, err := meter.Int64Counter(
		"cache.query.stale_serves",
		metric.WithDescription("Queries answered from an in-grace entry"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	loaderErrors, err := meter.Int64Counter(
		"cache.loader.errors",
		metric.WithDescription("Loader invocations that returned an error"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	verifyTotal, err := meter.Int64Counter(
		"cache.verify.total",
		metric.WithDescription("Background verifications run"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	verifyStale, err := meter.Int64Counter(
		"cache.verify.stale",
		metric.WithDescription("Background verifications that found a stale value"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	loaderDur, err := meter.Float64Histogram(
		"cache.loader.duration_ms",
		metric.WithDescription("Loader duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metrics{
		queries:      queries,
		hits:         hits,
		staleServes:  staleServes,
		loaderErrors: loaderErrors,
		verifyTotal:  verifyTotal,
		verifyStale:  verifyStale,
		loaderDur:    loaderDur,
	}, nil
}

func (m *metrics) recordLoader(ctx context.Context, d time.Duration, err error, background bool) {
	opt := metric.WithAttributes(attribute.Bool("cache.background", background))
	if err != nil {
		m.loaderErrors.Add(ctx, 1, opt)
	}
	m.loaderDur.Record(ctx, float64(d.Milliseconds()), opt)
}
