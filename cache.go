package qcache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/qcache/store"
	"github.com/jonwraymond/qcache/tag"
)

// Loader produces the value for a cache key on miss.
type Loader func(ctx context.Context) (any, error)

// Cache is the tag-indexed cache engine. It is safe for concurrent use
// and may be shared by many callers; all mutable engine state lives in
// the coalescer, everything else belongs to the storage backend.
type Cache struct {
	store    store.Store
	reporter store.Reporter // nil when the backend lacks the capability
	opts     Options

	group   singleflight.Group
	bg      sync.WaitGroup
	metrics *metrics
	tracer  trace.Tracer
}

// New creates a cache engine on top of a storage backend. The backend's
// verification-reporting capability is probed once here; backends without
// it are never sampled for verification.
func New(st store.Store, opts ...Option) (*Cache, error) {
	if st == nil {
		return nil, ErrNilStore
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	m, err := newMetrics(o.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("qcache: create instruments: %w", err)
	}

	tp := o.tracerProvider
	if tp == nil {
		tp = tracenoop.NewTracerProvider()
	}

	c := &Cache{
		store:   st,
		opts:    o,
		metrics: m,
		tracer:  tp.Tracer("github.com/jonwraymond/qcache"),
	}
	c.reporter, _ = st.(store.Reporter)
	return c, nil
}

// validateKey rejects keys that would be ambiguous or unsafe in a
// backend keyspace.
func validateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}

// cacheKey composes the namespaced backend key.
func (c *Cache) cacheKey(key string) string {
	return c.opts.prefix + ":" + key
}

// Query runs the cache protocol for key: coalesce concurrent callers,
// classify the stored entry, and serve fresh, serve stale with a
// background refresh, or load synchronously.
//
// Concurrent Query calls for the same key share a single loader
// invocation and observe the same value or the same error. A loader
// failure is suppressed when the previously stored entry still has
// usable grace; the stale value is returned instead.
func (c *Cache) Query(ctx context.Context, key string, tags []tag.Path, loader Loader, opts ...QueryOption) (any, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return nil, ErrNoTags
	}
	if loader == nil {
		return nil, ErrNilLoader
	}

	var qo queryOptions
	for _, opt := range opts {
		opt(&qo)
	}
	ttl, grace, err := qo.resolve(&c.opts)
	if err != nil {
		return nil, err
	}

	ck := c.cacheKey(key)
	v, err, _ := c.group.Do(ck, func() (any, error) {
		return c.queryOnce(ctx, ck, tags, loader, ttl, grace)
	})
	return v, err
}

// queryOnce is the per-key body run under the coalescer.
func (c *Cache) queryOnce(ctx context.Context, ck string, tags []tag.Path, loader Loader, ttl, grace time.Duration) (any, error) {
	c.metrics.queries.Add(ctx, 1)
	now := c.opts.now()

	prev, found, err := c.store.Get(ctx, ck)
	if err != nil {
		return nil, fmt.Errorf("qcache: store read: %w", err)
	}

	if found {
		fr, err := c.classify(ctx, prev, now)
		if err != nil {
			return nil, err
		}
		switch fr {
		case Fresh:
			c.metrics.hits.Add(ctx, 1)
			if c.reporter != nil && c.opts.randFloat() < c.opts.verifyPercent {
				c.spawnVerify(ctx, ck, prev.Value, loader)
			}
			return prev.Value, nil
		case InGrace:
			c.metrics.staleServes.Add(ctx, 1)
			c.spawnRefresh(ctx, ck, tags, loader, ttl, grace)
			return prev.Value, nil
		}
		// Expired: fall through to a synchronous load, keeping prev as
		// the grace fallback.
	}

	v, err := c.fetchAndCache(ctx, ck, tags, loader, ttl, grace, false)
	if err != nil {
		if found && prev.GraceUntil != 0 && prev.GraceUntil > now {
			c.metrics.staleServes.Add(ctx, 1)
			c.opts.logger.Warn(ctx, "loader failed, serving grace value",
				"key", ck, "error", err)
			return prev.Value, nil
		}
		return nil, err
	}
	return v, nil
}

// fetchAndCache invokes the loader and stores the result. The loader's
// value is returned only after a successful write; a write failure is
// propagated, never swallowed.
func (c *Cache) fetchAndCache(ctx context.Context, ck string, tags []tag.Path, loader Loader, ttl, grace time.Duration, background bool) (any, error) {
	lctx, span := c.tracer.Start(ctx, "qcache.load",
		trace.WithAttributes(
			attribute.String("cache.key", ck),
			attribute.Bool("cache.background", background),
		))
	start := time.Now()
	v, err := loader(lctx)
	c.metrics.recordLoader(ctx, time.Since(start), err, background)
	if err != nil {
		span.RecordError(err)
		span.End()
		return nil, err
	}
	span.End()

	now := c.opts.now()
	var graceUntil int64
	if grace > 0 {
		graceUntil = now + ttl.Milliseconds() + grace.Milliseconds()
	}
	e, err := store.NewEntry(v, tags, now, now+ttl.Milliseconds(), graceUntil)
	if err != nil {
		return nil, fmt.Errorf("qcache: build entry: %w", err)
	}
	if err := c.store.Set(ctx, ck, e); err != nil {
		return nil, fmt.Errorf("qcache: store write: %w", err)
	}
	return v, nil
}

// Invalidate marks every entry tagged with any of the given paths, or an
// extension of one, as stale. It is a single timestamp write per tag; no
// entries are enumerated. Idempotent with respect to reader-observable
// state.
func (c *Cache) Invalidate(ctx context.Context, tags []tag.Path) error {
	return c.writeInvalidations(ctx, tags, false)
}

// InvalidateExact confines the invalidation to entries whose tag set
// contains exactly the given paths; extensions are untouched.
func (c *Cache) InvalidateExact(ctx context.Context, tags []tag.Path) error {
	return c.writeInvalidations(ctx, tags, true)
}

func (c *Cache) writeInvalidations(ctx context.Context, tags []tag.Path, exact bool) error {
	now := c.opts.now()
	for _, t := range tags {
		if len(t) == 0 {
			return ErrNoTags
		}
		p := t
		if exact {
			p = t.WithExact()
		}
		if err := c.store.InvalidateTag(ctx, p.String(), now); err != nil {
			return fmt.Errorf("qcache: write invalidation: %w", err)
		}
	}
	return nil
}

// Clear purges all entries and tag timestamps under the engine's
// namespace.
func (c *Cache) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// Disconnect waits for in-flight background work, then releases the
// backend.
func (c *Cache) Disconnect(ctx context.Context) error {
	c.bg.Wait()
	return c.store.Disconnect(ctx)
}

// Ping reports backend liveness when the backend supports it.
func (c *Cache) Ping(ctx context.Context) error {
	if p, ok := c.store.(store.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
