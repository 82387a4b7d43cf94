package qcache

import (
	"context"
	"fmt"

	"github.com/jonwraymond/qcache/store"
)

// Freshness classifies a stored entry relative to a point in time.
// Classification only progresses Fresh -> InGrace -> Expired as time
// advances, absent writes.
type Freshness int

const (
	// Fresh means the entry is within its TTL and not tag-invalidated.
	Fresh Freshness = iota

	// InGrace means the entry is past its TTL but within its grace
	// window; it is served while a background refresh runs.
	InGrace

	// Expired means the entry is unusable as a fresh result.
	Expired
)

func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case InGrace:
		return "in_grace"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// classifyByTime classifies an entry against now, ignoring tags.
func classifyByTime(e store.Entry, now int64) Freshness {
	switch {
	case e.ExpiresAt > now:
		return Fresh
	case e.GraceUntil != 0 && e.GraceUntil > now:
		return InGrace
	default:
		return Expired
	}
}

// entryInvalidated reports whether any of the entry's tags has an
// invalidation timestamp at or after the entry's creation. For each tag T
// it consults the exact-sentinel channel T++["__exact__"] and every
// non-empty prefix of T. A timestamp equal to CreatedAt invalidates, so
// same-millisecond invalidations are safe.
//
// This is the single invalidation check shared by the query path and the
// primitives facade.
func (c *Cache) entryInvalidated(ctx context.Context, e store.Entry) (bool, error) {
	for _, t := range e.Tags {
		ms, ok, err := c.store.TagInvalidatedAt(ctx, t.WithExact().String())
		if err != nil {
			return false, fmt.Errorf("qcache: read tag timestamp: %w", err)
		}
		if ok && ms >= e.CreatedAt {
			return true, nil
		}

		for n := 1; n <= len(t); n++ {
			ms, ok, err := c.store.TagInvalidatedAt(ctx, t.Prefix(n).String())
			if err != nil {
				return false, fmt.Errorf("qcache: read tag timestamp: %w", err)
			}
			if ok && ms >= e.CreatedAt {
				return true, nil
			}
		}
	}
	return false, nil
}

// classify runs the full freshness evaluation: tag invalidation first,
// then the time window. A tag-invalidated entry classifies Expired
// regardless of its window; the engine may still use it as grace fallback
// when the loader fails.
func (c *Cache) classify(ctx context.Context, e store.Entry, now int64) (Freshness, error) {
	invalidated, err := c.entryInvalidated(ctx, e)
	if err != nil {
		return Expired, err
	}
	if invalidated {
		return Expired, nil
	}
	return classifyByTime(e, now), nil
}
