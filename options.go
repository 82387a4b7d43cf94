package qcache

import (
	"fmt"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Defaults for engine configuration.
const (
	// DefaultPrefix namespaces cache keys written through the query facade.
	DefaultPrefix = "qc"

	// PrimitivesPrefix is the historical default used by stores driven
	// through the raw Get/Set/Del facade. Kept for wire compatibility;
	// select it with WithPrefix.
	PrimitivesPrefix = "t87s"

	// DefaultTTL is the freshness window applied when a query sets none.
	DefaultTTL = 30 * time.Second

	// DefaultVerifyPercent is the sampling rate for background
	// verification on fresh hits.
	DefaultVerifyPercent = 0.1
)

// Options holds resolved engine configuration. Construct via New with
// Option funcs.
type Options struct {
	prefix        string
	defaultTTL    time.Duration
	defaultGrace  time.Duration
	verifyPercent float64
	logger        Logger
	meterProvider metric.MeterProvider
	tracerProvider trace.TracerProvider

	// now returns wall-clock milliseconds. Injectable for tests.
	now func() int64

	// randFloat returns a sample in [0,1). Injectable for tests.
	randFloat func() float64
}

// Option configures the engine.
type Option func(*Options)

// WithPrefix sets the namespace prefix prepended to every cache key.
func WithPrefix(p string) Option {
	return func(o *Options) { o.prefix = p }
}

// WithDefaultTTL sets the default freshness window.
func WithDefaultTTL(d time.Duration) Option {
	return func(o *Options) { o.defaultTTL = d }
}

// WithDefaultGrace sets the default grace window beyond the TTL. Zero
// disables grace, which is the default.
func WithDefaultGrace(d time.Duration) Option {
	return func(o *Options) { o.defaultGrace = d }
}

// WithVerifyPercent sets the sampling rate for background verification,
// in [0,1]. Rejected outside that range at construction.
func WithVerifyPercent(p float64) Option {
	return func(o *Options) { o.verifyPercent = p }
}

// WithLogger sets the logger used for background failures and for loader
// failures recovered from a grace value.
func WithLogger(l Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for engine
// metrics. Defaults to a no-op.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *Options) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider used to span
// synchronous loader calls. Defaults to a no-op.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithClock overrides the engine clock. The function must return
// wall-clock milliseconds and be safe for concurrent use.
func WithClock(now func() int64) Option {
	return func(o *Options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRandom overrides the sampler used for verification, a function
// returning values in [0,1).
func WithRandom(f func() float64) Option {
	return func(o *Options) {
		if f != nil {
			o.randFloat = f
		}
	}
}

func defaultOptions() Options {
	return Options{
		prefix:        DefaultPrefix,
		defaultTTL:    DefaultTTL,
		defaultGrace:  0,
		verifyPercent: DefaultVerifyPercent,
		logger:        nopLogger{},
		now:           func() int64 { return time.Now().UnixMilli() },
		randFloat:     rand.Float64,
	}
}

func (o *Options) validate() error {
	if o.verifyPercent < 0 || o.verifyPercent > 1 {
		return fmt.Errorf("%w: %v", ErrVerifyPercent, o.verifyPercent)
	}
	if o.defaultTTL < 0 || o.defaultGrace < 0 {
		return ErrNegativeTTL
	}
	return nil
}

// QueryOption configures a single query call.
type QueryOption func(*queryOptions)

type queryOptions struct {
	ttl      time.Duration
	ttlSet   bool
	grace    time.Duration
	graceSet bool
}

// WithTTL overrides the freshness window for this query.
func WithTTL(d time.Duration) QueryOption {
	return func(q *queryOptions) { q.ttl, q.ttlSet = d, true }
}

// WithGrace overrides the grace window for this query. Zero disables
// grace for the entry regardless of the engine default.
func WithGrace(d time.Duration) QueryOption {
	return func(q *queryOptions) { q.grace, q.graceSet = d, true }
}

// resolve applies engine defaults to per-call overrides.
func (q queryOptions) resolve(o *Options) (ttl, grace time.Duration, err error) {
	ttl, grace = o.defaultTTL, o.defaultGrace
	if q.ttlSet {
		ttl = q.ttl
	}
	if q.graceSet {
		grace = q.grace
	}
	if ttl < 0 || grace < 0 {
		return 0, 0, ErrNegativeTTL
	}
	return ttl, grace, nil
}
