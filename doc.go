// Package qcache is a declarative, tag-indexed result cache.
//
// Callers run named queries against the cache: each query maps to a
// deterministic cache key, a set of hierarchical dependency tags, and a
// loader invoked on miss. Invalidation is declared against tag paths;
// entries whose tag set matches an invalidated path (or any extension of
// it) become stale without being enumerated.
//
// The engine provides freshness classification with a grace window
// (stale-while-revalidate), in-process request coalescing, sampled
// background verification, and pluggable storage via the store.Store
// contract.
//
// Basic usage:
//
//	c, err := qcache.New(store.NewMemory(store.MemoryConfig{}))
//	if err != nil {
//		// handle
//	}
//	v, err := c.Query(ctx, "getUser:1",
//		[]tag.Path{tag.New("user", "1")},
//		func(ctx context.Context) (any, error) { return fetchUser(ctx, "1") },
//		qcache.WithTTL(time.Minute),
//	)
//
// Invalidation cascades down the tag hierarchy:
//
//	// Marks every entry tagged under ["posts","1", ...] stale.
//	c.Invalidate(ctx, []tag.Path{tag.New("posts", "1")})
//
//	// Confined to entries tagged exactly ["posts","1"].
//	c.InvalidateExact(ctx, []tag.Path{tag.New("posts", "1")})
package qcache
