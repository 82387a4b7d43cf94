package store

import (
	"context"
	"errors"

	"github.com/jonwraymond/qcache/tag"
)

// Sentinel errors for store operations.
var (
	// ErrNoTags is returned when an entry is constructed without tags.
	ErrNoTags = errors.New("store: entry has no tags")

	// ErrInvalidWindow is returned when an entry's timestamps are not
	// ordered created <= expires <= grace.
	ErrInvalidWindow = errors.New("store: entry timestamps out of order")

	// ErrClosed is returned by backends after Disconnect.
	ErrClosed = errors.New("store: backend is closed")
)

// Entry is the record stored under a cache key. Entries are immutable:
// updates are whole-entry overwrites, never in-place mutation.
//
// Timestamps are wall-clock milliseconds. GraceUntil is zero when the
// entry has no grace window.
type Entry struct {
	Value      any
	Tags       []tag.Path
	CreatedAt  int64
	ExpiresAt  int64
	GraceUntil int64
}

// NewEntry constructs a validated entry. The tag set must be non-empty and
// the timestamps ordered CreatedAt <= ExpiresAt <= GraceUntil (when grace
// is present).
func NewEntry(value any, tags []tag.Path, createdAt, expiresAt, graceUntil int64) (Entry, error) {
	if len(tags) == 0 {
		return Entry{}, ErrNoTags
	}
	if createdAt > expiresAt {
		return Entry{}, ErrInvalidWindow
	}
	if graceUntil != 0 && expiresAt > graceUntil {
		return Entry{}, ErrInvalidWindow
	}
	return Entry{
		Value:      value,
		Tags:       tags,
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
		GraceUntil: graceUntil,
	}, nil
}

// Deadline returns the timestamp past which no reader will ever use the
// entry again: GraceUntil when grace is present, ExpiresAt otherwise.
// Backends may use it as a passive-expiry TTL.
func (e Entry) Deadline() int64 {
	if e.GraceUntil != 0 {
		return e.GraceUntil
	}
	return e.ExpiresAt
}

// Store is the contract between the cache engine and a storage backend.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines where applicable.
// - Errors: all methods are fallible; the engine decides which failures
//   are propagated and which are swallowed.
type Store interface {
	// Get retrieves the entry under key. The second return is false on miss.
	Get(ctx context.Context, key string) (Entry, bool, error)

	// Set stores an entry under key, overwriting any previous entry.
	Set(ctx context.Context, key string, e Entry) error

	// Delete removes the entry under key. Idempotent - no error on miss.
	Delete(ctx context.Context, key string) error

	// TagInvalidatedAt returns the invalidation timestamp recorded for a
	// serialized tag. The second return is false when the tag has never
	// been invalidated.
	TagInvalidatedAt(ctx context.Context, serialized string) (int64, bool, error)

	// InvalidateTag records an invalidation timestamp for a serialized
	// tag. Writes overwrite; later wins.
	InvalidateTag(ctx context.Context, serialized string, ms int64) error

	// Clear removes all entries and all tag timestamps under the
	// backend's namespace.
	Clear(ctx context.Context) error

	// Disconnect releases backend resources. Whether later calls fail
	// depends on the backend: the in-memory backend returns ErrClosed,
	// the HTTP backend stays usable.
	Disconnect(ctx context.Context) error
}

// Reporter is the optional verification-reporting capability. The engine
// probes for it at construction; backends without it are never sampled for
// verification.
type Reporter interface {
	ReportVerification(ctx context.Context, key string, isStale bool, cachedHash, freshHash string) error
}

// Pinger is the optional liveness capability for health integration.
type Pinger interface {
	Ping(ctx context.Context) error
}
