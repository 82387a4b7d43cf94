package qcache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonwraymond/qcache/tag"
)

// Def is a registered named query: a name, derivations from the argument
// to the cache key and dependency tags, a typed loader, and per-query
// policy. Definitions are plain values and safe to share.
type Def[A, V any] struct {
	// Name prefixes every key this query produces.
	Name string

	// Key derives the argument-specific key part. Nil means the query
	// takes no argument-dependent key (Name alone is the key).
	Key func(arg A) string

	// Tags derives the dependency tags for a given argument.
	Tags func(arg A) []tag.Path

	// Load produces the value on miss.
	Load func(ctx context.Context, arg A) (V, error)

	// Options carries per-query TTL and grace overrides.
	Options []QueryOption
}

// Run executes the query through the engine. Concurrent runs with equal
// keys coalesce like any other Query call.
func (d Def[A, V]) Run(ctx context.Context, c *Cache, arg A) (V, error) {
	var zero V
	if d.Load == nil {
		return zero, ErrNilLoader
	}

	key := d.Name
	if d.Key != nil {
		key = d.Name + ":" + d.Key(arg)
	}

	var tags []tag.Path
	if d.Tags != nil {
		tags = d.Tags(arg)
	}

	v, err := c.Query(ctx, key, tags, func(ctx context.Context) (any, error) {
		return d.Load(ctx, arg)
	}, d.Options...)
	if err != nil {
		return zero, err
	}
	return coerce[V](v)
}

// coerce converts a stored value back to the query's result type. A value
// that crossed a serializing backend comes back as decoded JSON; it is
// re-marshaled into V rather than type-asserted.
func coerce[V any](v any) (V, error) {
	if tv, ok := v.(V); ok {
		return tv, nil
	}

	var out V
	raw, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("qcache: decode cached value: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("qcache: decode cached value: %w", err)
	}
	return out, nil
}
