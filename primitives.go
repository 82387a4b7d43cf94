package qcache

import (
	"context"
	"fmt"

	"github.com/jonwraymond/qcache/store"
	"github.com/jonwraymond/qcache/tag"
)

// The primitives facade exposes raw cache operations that share the
// freshness evaluator and invalidation semantics with Query, but bypass
// the coalescer and the loader path.

// Get returns the stored value for key if and only if the entry would
// classify Fresh or InGrace and is not tag-invalidated. It never deletes
// the entry on a stale read; expiry remains the backend's business.
func (c *Cache) Get(ctx context.Context, key string) (any, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}

	e, found, err := c.store.Get(ctx, c.cacheKey(key))
	if err != nil {
		return nil, false, fmt.Errorf("qcache: store read: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	fr, err := c.classify(ctx, e, c.opts.now())
	if err != nil {
		return nil, false, err
	}
	if fr == Expired {
		return nil, false, nil
	}
	return e.Value, true, nil
}

// Set stores value under key with the given tags. A ttl or grace not given
// as an option falls back to the engine default the same way Query
// resolves them; an explicit zero is kept.
func (c *Cache) Set(ctx context.Context, key string, value any, tags []tag.Path, opts ...QueryOption) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if len(tags) == 0 {
		return ErrNoTags
	}

	var qo queryOptions
	for _, opt := range opts {
		opt(&qo)
	}
	ttl, grace, err := qo.resolve(&c.opts)
	if err != nil {
		return err
	}

	now := c.opts.now()
	var graceUntil int64
	if grace > 0 {
		graceUntil = now + ttl.Milliseconds() + grace.Milliseconds()
	}
	e, err := store.NewEntry(value, tags, now, now+ttl.Milliseconds(), graceUntil)
	if err != nil {
		return fmt.Errorf("qcache: build entry: %w", err)
	}
	if err := c.store.Set(ctx, c.cacheKey(key), e); err != nil {
		return fmt.Errorf("qcache: store write: %w", err)
	}
	return nil
}

// Del removes the entry under key.
func (c *Cache) Del(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := c.store.Delete(ctx, c.cacheKey(key)); err != nil {
		return fmt.Errorf("qcache: store delete: %w", err)
	}
	return nil
}
