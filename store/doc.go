// Package store defines the storage contract the cache engine depends on,
// the entry record stored under each cache key, and an in-memory backend.
//
// A backend holds two keyspaces: cache entries keyed by the engine's
// prefixed cache key, and per-tag invalidation timestamps keyed by the
// serialized tag path. Backends may additionally implement the optional
// Reporter and Pinger capabilities.
package store
