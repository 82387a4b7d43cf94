package remote

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSecret is returned when auth is configured without a signing key.
var ErrNoSecret = errors.New("remote: auth secret is empty")

// AuthConfig enables HS256 bearer tokens on every request.
type AuthConfig struct {
	// Secret is the shared HMAC signing key.
	Secret []byte

	// Issuer and Subject identify this client in the token claims.
	Issuer  string
	Subject string

	// TokenTTL bounds token lifetime. Default: 5 minutes.
	TokenTTL time.Duration
}

// tokenSource mints short-lived HS256 tokens, reusing one until shortly
// before expiry.
type tokenSource struct {
	cfg AuthConfig

	mu      sync.Mutex
	current string
	expires time.Time
}

func newTokenSource(cfg AuthConfig) (*tokenSource, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrNoSecret
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 5 * time.Minute
	}
	return &tokenSource{cfg: cfg}, nil
}

// bearer returns a valid signed token, minting a fresh one when the
// cached token is within 30 seconds of expiry.
func (t *tokenSource) bearer() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != "" && time.Until(t.expires) > 30*time.Second {
		return t.current, nil
	}

	now := time.Now()
	expires := now.Add(t.cfg.TokenTTL)
	claims := jwt.RegisteredClaims{
		Issuer:    t.cfg.Issuer,
		Subject:   t.cfg.Subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("remote: sign token: %w", err)
	}
	t.current, t.expires = signed, expires
	return signed, nil
}
