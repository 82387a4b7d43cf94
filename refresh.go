package qcache

import (
	"context"
	"time"

	"github.com/jonwraymond/qcache/tag"
)

// spawnRefresh starts a detached stale-while-revalidate refresh. The
// refresh does not hold the spawning request's coalescer entry; it runs
// outside the coalescer and swallows every failure, leaving the stale
// entry in place until a synchronous reader forces a load.
func (c *Cache) spawnRefresh(ctx context.Context, ck string, tags []tag.Path, loader Loader, ttl, grace time.Duration) {
	bgCtx := context.WithoutCancel(ctx)
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		if _, err := c.fetchAndCache(bgCtx, ck, tags, loader, ttl, grace, true); err != nil {
			c.opts.logger.Warn(bgCtx, "background refresh failed",
				"key", ck, "error", err)
		}
	}()
}

// spawnVerify starts a detached sampled verification: re-run the loader,
// hash both values, and report the comparison to the backend. The cached
// value is never replaced and every failure, including the report write,
// is swallowed.
func (c *Cache) spawnVerify(ctx context.Context, ck string, cached any, loader Loader) {
	bgCtx := context.WithoutCancel(ctx)
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()

		start := time.Now()
		fresh, err := loader(bgCtx)
		c.metrics.recordLoader(bgCtx, time.Since(start), err, true)
		if err != nil {
			c.opts.logger.Debug(bgCtx, "verification loader failed",
				"key", ck, "error", err)
			return
		}

		cachedHash, err := StableHash(cached)
		if err != nil {
			c.opts.logger.Debug(bgCtx, "verification hash failed",
				"key", ck, "error", err)
			return
		}
		freshHash, err := StableHash(fresh)
		if err != nil {
			c.opts.logger.Debug(bgCtx, "verification hash failed",
				"key", ck, "error", err)
			return
		}

		isStale := cachedHash != freshHash
		c.metrics.verifyTotal.Add(bgCtx, 1)
		if isStale {
			c.metrics.verifyStale.Add(bgCtx, 1)
		}

		if err := c.reporter.ReportVerification(bgCtx, ck, isStale, cachedHash, freshHash); err != nil {
			c.opts.logger.Debug(bgCtx, "verification report failed",
				"key", ck, "error", err)
		}
	}()
}
