// Package valkey implements the cache storage contract on a Valkey or
// Redis-compatible server using valkey-io/valkey-go.
//
// Entries are stored as JSON with a server-side TTL derived from the
// entry's deadline, so expired entries drop out passively. Tag
// timestamps are stored as plain integer values. The backend does not
// implement verification reporting.
package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	valkeylib "github.com/valkey-io/valkey-go"

	"github.com/jonwraymond/qcache/store"
	"github.com/jonwraymond/qcache/tag"
)

// DefaultConnectTimeout is the maximum time to wait for the initial ping.
const DefaultConnectTimeout = 5 * time.Second

// Config holds the connection settings for the Valkey backend.
type Config struct {
	// Address is the host:port of the server.
	Address string

	// Password authenticates the connection when non-empty.
	Password string

	// DB selects the logical database.
	DB int

	// KeyPrefix namespaces every key this backend writes. Defaults to
	// "qcache". A trailing colon is added if missing.
	KeyPrefix string

	// ConnectTimeout bounds the initial liveness check.
	ConnectTimeout time.Duration
}

// Store is a Valkey-backed storage backend.
type Store struct {
	inner  valkeylib.Client
	prefix string
}

// New connects to the server and verifies the connection with a ping.
func New(cfg Config) (*Store, error) {
	opts := valkeylib.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	inner, err := valkeylib.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("valkey: create client: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := inner.Do(ctx, inner.B().Ping().Build()).Error(); err != nil {
		inner.Close()
		return nil, fmt.Errorf("valkey: ping: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "qcache"
	}
	if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &Store{inner: inner, prefix: prefix}, nil
}

// wireEntry is the stored JSON shape of a cache entry.
type wireEntry struct {
	Value      json.RawMessage `json:"value"`
	Tags       [][]string      `json:"tags"`
	CreatedAt  int64           `json:"createdAt"`
	ExpiresAt  int64           `json:"expiresAt"`
	GraceUntil int64           `json:"graceUntil,omitempty"`
}

func encodeEntry(e store.Entry) ([]byte, error) {
	value, err := json.Marshal(e.Value)
	if err != nil {
		return nil, fmt.Errorf("valkey: encode value: %w", err)
	}
	tags := make([][]string, len(e.Tags))
	for i, t := range e.Tags {
		tags[i] = []string(t)
	}
	return json.Marshal(wireEntry{
		Value:      value,
		Tags:       tags,
		CreatedAt:  e.CreatedAt,
		ExpiresAt:  e.ExpiresAt,
		GraceUntil: e.GraceUntil,
	})
}

func decodeEntry(data []byte) (store.Entry, error) {
	var w wireEntry
	if err := json.Unmarshal(data, &w); err != nil {
		return store.Entry{}, fmt.Errorf("valkey: decode entry: %w", err)
	}
	var value any
	if err := json.Unmarshal(w.Value, &value); err != nil {
		return store.Entry{}, fmt.Errorf("valkey: decode value: %w", err)
	}
	tags := make([]tag.Path, len(w.Tags))
	for i, segs := range w.Tags {
		tags[i] = tag.New(segs...)
	}
	return store.Entry{
		Value:      value,
		Tags:       tags,
		CreatedAt:  w.CreatedAt,
		ExpiresAt:  w.ExpiresAt,
		GraceUntil: w.GraceUntil,
	}, nil
}

func (s *Store) entryKey(key string) string { return s.prefix + "e:" + key }
func (s *Store) tagKey(serialized string) string {
	return s.prefix + "t:" + serialized
}

// Get retrieves an entry. Keys the server has already expired read as
// misses.
func (s *Store) Get(ctx context.Context, key string) (store.Entry, bool, error) {
	cmd := s.inner.B().Get().Key(s.entryKey(key)).Build()
	data, err := s.inner.Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkeylib.IsValkeyNil(err) {
			return store.Entry{}, false, nil
		}
		return store.Entry{}, false, fmt.Errorf("valkey: get: %w", err)
	}
	e, err := decodeEntry(data)
	if err != nil {
		return store.Entry{}, false, err
	}
	return e, true, nil
}

// Set stores an entry with a server TTL at the entry's deadline. Entries
// already past their deadline are not written.
func (s *Store) Set(ctx context.Context, key string, e store.Entry) error {
	data, err := encodeEntry(e)
	if err != nil {
		return err
	}

	remaining := time.Duration(e.Deadline()-time.Now().UnixMilli()) * time.Millisecond
	if remaining <= 0 {
		return nil
	}

	cmd := s.inner.B().Set().
		Key(s.entryKey(key)).
		Value(string(data)).
		Px(remaining).
		Build()
	if err := s.inner.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey: set: %w", err)
	}
	return nil
}

// Delete removes an entry. Idempotent.
func (s *Store) Delete(ctx context.Context, key string) error {
	cmd := s.inner.B().Del().Key(s.entryKey(key)).Build()
	if err := s.inner.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey: del: %w", err)
	}
	return nil
}

// TagInvalidatedAt reads the invalidation timestamp for a serialized tag.
func (s *Store) TagInvalidatedAt(ctx context.Context, serialized string) (int64, bool, error) {
	cmd := s.inner.B().Get().Key(s.tagKey(serialized)).Build()
	raw, err := s.inner.Do(ctx, cmd).ToString()
	if err != nil {
		if valkeylib.IsValkeyNil(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("valkey: get tag: %w", err)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("valkey: parse tag timestamp %q: %w", raw, err)
	}
	return ms, true, nil
}

// InvalidateTag writes the invalidation timestamp for a serialized tag.
// Tag timestamps carry no TTL; aging them out is a server policy choice.
func (s *Store) InvalidateTag(ctx context.Context, serialized string, ms int64) error {
	cmd := s.inner.B().Set().
		Key(s.tagKey(serialized)).
		Value(strconv.FormatInt(ms, 10)).
		Build()
	if err := s.inner.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey: set tag: %w", err)
	}
	return nil
}

// Clear removes every key under the backend's prefix, entries and tag
// timestamps both, scanning in batches.
func (s *Store) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		scanCmd := s.inner.B().Scan().Cursor(cursor).Match(s.prefix + "*").Count(100).Build()
		result, err := s.inner.Do(ctx, scanCmd).AsScanEntry()
		if err != nil {
			return fmt.Errorf("valkey: scan: %w", err)
		}

		if len(result.Elements) > 0 {
			delCmd := s.inner.B().Del().Key(result.Elements...).Build()
			if err := s.inner.Do(ctx, delCmd).Error(); err != nil {
				return fmt.Errorf("valkey: del batch: %w", err)
			}
		}

		cursor = result.Cursor
		if cursor == 0 {
			return nil
		}
	}
}

// Disconnect closes the connection.
func (s *Store) Disconnect(_ context.Context) error {
	s.inner.Close()
	return nil
}

// Ping reports server liveness.
func (s *Store) Ping(ctx context.Context) error {
	return s.inner.Do(ctx, s.inner.B().Ping().Build()).Error()
}

// Ensure Store implements the contract and the liveness capability.
var (
	_ store.Store  = (*Store)(nil)
	_ store.Pinger = (*Store)(nil)
)
