// Package remote implements the cache storage contract over an HTTP
// key/value service.
//
// Entries live under /v1/entries/{key}, tag timestamps under
// /v1/tags/{serialized}; both are JSON. The backend supports the
// verification-reporting capability via POST /v1/verify and liveness via
// GET /v1/ping. Requests can carry a short-lived HS256 bearer token.
// Idempotent reads are retried with exponential backoff; writes are
// attempted exactly once.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonwraymond/qcache/store"
	"github.com/jonwraymond/qcache/tag"
)

// Service paths, fixed for wire compatibility.
const (
	entriesPath = "/v1/entries/"
	tagsPath    = "/v1/tags/"
	verifyPath  = "/v1/verify"
	clearPath   = "/v1/clear"
	pingPath    = "/v1/ping"
)

// ErrUnexpectedStatus wraps non-2xx responses.
var ErrUnexpectedStatus = errors.New("remote: unexpected status")

// Config holds the settings for the remote backend.
type Config struct {
	// BaseURL is the service root, e.g. "https://cache.internal:8443".
	BaseURL string

	// HTTPClient overrides the default client (30s timeout).
	HTTPClient *http.Client

	// Auth enables bearer-token signing when non-nil.
	Auth *AuthConfig

	// Retry tunes the read-retry policy.
	Retry RetryConfig
}

// Store is an HTTP-backed storage backend.
type Store struct {
	base  string
	http  *http.Client
	token *tokenSource
	retry RetryConfig
}

// New validates the configuration and builds the backend. No connection
// is attempted; use Ping to probe the service.
func New(cfg Config) (*Store, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("remote: invalid base URL %q", cfg.BaseURL)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	var ts *tokenSource
	if cfg.Auth != nil {
		ts, err = newTokenSource(*cfg.Auth)
		if err != nil {
			return nil, err
		}
	}

	return &Store{
		base:  strings.TrimSuffix(u.String(), "/"),
		http:  client,
		token: ts,
		retry: cfg.Retry.withDefaults(),
	}, nil
}

// wireEntry is the JSON shape of an entry on the wire.
type wireEntry struct {
	Value      json.RawMessage `json:"value"`
	Tags       [][]string      `json:"tags"`
	CreatedAt  int64           `json:"createdAt"`
	ExpiresAt  int64           `json:"expiresAt"`
	GraceUntil int64           `json:"graceUntil,omitempty"`
}

type wireTag struct {
	Ms int64 `json:"ms"`
}

type wireVerify struct {
	Key        string `json:"key"`
	IsStale    bool   `json:"isStale"`
	CachedHash string `json:"cachedHash"`
	FreshHash  string `json:"freshHash"`
	Timestamp  int64  `json:"timestamp"`
}

func (s *Store) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.base+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("remote: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != nil {
		bearer, err := s.token.bearer()
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: %s %s: %w", method, path, err)
	}
	return resp, nil
}

func drainClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

func statusErr(method, path string, code int) error {
	return fmt.Errorf("%w: %s %s: %d", ErrUnexpectedStatus, method, path, code)
}

// get runs a retried GET. Misses (404) return (nil, false, nil).
func (s *Store) get(ctx context.Context, path string) ([]byte, bool, error) {
	var body []byte
	var found bool

	err := s.retry.run(ctx, func(ctx context.Context) error {
		resp, err := s.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return retryable(err)
		}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			drainClose(resp)
			body, found = nil, false
			return nil
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			defer resp.Body.Close()
			b, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("remote: read body: %w", err)
			}
			body, found = b, true
			return nil
		default:
			code := resp.StatusCode
			drainClose(resp)
			err = statusErr(http.MethodGet, path, code)
			if code >= 500 {
				return retryable(err)
			}
			return err
		}
	})
	if err != nil {
		return nil, false, err
	}
	return body, found, nil
}

// write runs a single non-retried request and checks for 2xx. A 404 on
// DELETE counts as success (idempotent).
func (s *Store) write(ctx context.Context, method, path string, body []byte) error {
	resp, err := s.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	code := resp.StatusCode
	drainClose(resp)
	if code >= 200 && code < 300 {
		return nil
	}
	if method == http.MethodDelete && code == http.StatusNotFound {
		return nil
	}
	return statusErr(method, path, code)
}

// Get retrieves an entry.
func (s *Store) Get(ctx context.Context, key string) (store.Entry, bool, error) {
	body, found, err := s.get(ctx, entriesPath+url.PathEscape(key))
	if err != nil || !found {
		return store.Entry{}, false, err
	}

	var w wireEntry
	if err := json.Unmarshal(body, &w); err != nil {
		return store.Entry{}, false, fmt.Errorf("remote: decode entry: %w", err)
	}
	var value any
	if err := json.Unmarshal(w.Value, &value); err != nil {
		return store.Entry{}, false, fmt.Errorf("remote: decode value: %w", err)
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
	}, true, nil
}

// Set stores an entry.
func (s *Store) Set(ctx context.Context, key string, e store.Entry) error {
	value, err := json.Marshal(e.Value)
	if err != nil {
		return fmt.Errorf("remote: encode value: %w", err)
	}
	tags := make([][]string, len(e.Tags))
	for i, t := range e.Tags {
		tags[i] = []string(t)
	}
	body, err := json.Marshal(wireEntry{
		Value:      value,
		Tags:       tags,
		CreatedAt:  e.CreatedAt,
		ExpiresAt:  e.ExpiresAt,
		GraceUntil: e.GraceUntil,
	})
	if err != nil {
		return fmt.Errorf("remote: encode entry: %w", err)
	}
	return s.write(ctx, http.MethodPut, entriesPath+url.PathEscape(key), body)
}

// Delete removes an entry. Idempotent.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.write(ctx, http.MethodDelete, entriesPath+url.PathEscape(key), nil)
}

// TagInvalidatedAt reads the invalidation timestamp for a serialized tag.
func (s *Store) TagInvalidatedAt(ctx context.Context, serialized string) (int64, bool, error) {
	body, found, err := s.get(ctx, tagsPath+url.PathEscape(serialized))
	if err != nil || !found {
		return 0, false, err
	}
	var w wireTag
	if err := json.Unmarshal(body, &w); err != nil {
		return 0, false, fmt.Errorf("remote: decode tag: %w", err)
	}
	return w.Ms, true, nil
}

// InvalidateTag writes the invalidation timestamp for a serialized tag.
func (s *Store) InvalidateTag(ctx context.Context, serialized string, ms int64) error {
	body, err := json.Marshal(wireTag{Ms: ms})
	if err != nil {
		return fmt.Errorf("remote: encode tag: %w", err)
	}
	return s.write(ctx, http.MethodPut, tagsPath+url.PathEscape(serialized), body)
}

// Clear purges the service's namespace.
func (s *Store) Clear(ctx context.Context) error {
	return s.write(ctx, http.MethodPost, clearPath, nil)
}

// Disconnect drops idle connections. The backend stays usable; the
// remote service owns the data.
func (s *Store) Disconnect(_ context.Context) error {
	s.http.CloseIdleConnections()
	return nil
}

// Ping probes service liveness.
func (s *Store) Ping(ctx context.Context) error {
	return s.write(ctx, http.MethodGet, pingPath, nil)
}

// ReportVerification posts a sampled verification result.
func (s *Store) ReportVerification(ctx context.Context, key string, isStale bool, cachedHash, freshHash string) error {
	body, err := json.Marshal(wireVerify{
		Key:        key,
		IsStale:    isStale,
		CachedHash: cachedHash,
		FreshHash:  freshHash,
		Timestamp:  time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("remote: encode verification: %w", err)
	}
	return s.write(ctx, http.MethodPost, verifyPath, body)
}

// Ensure Store implements the contract and both optional capabilities.
var (
	_ store.Store    = (*Store)(nil)
	_ store.Reporter = (*Store)(nil)
	_ store.Pinger   = (*Store)(nil)
)
