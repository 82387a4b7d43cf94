package remote

import (
	"context"
	"errors"
	"time"
)

// RetryConfig tunes the bounded retry applied to idempotent reads.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, including the
	// first. Default: 3. Set to 1 to disable retries.
	MaxAttempts int

	// InitialDelay is the delay before the first retry. Default: 50ms.
	InitialDelay time.Duration

	// Multiplier grows the delay each attempt. Default: 2.0.
	Multiplier float64
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 50 * time.Millisecond
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	return c
}

// retryableError marks an error as worth another attempt (transport
// failures, 5xx responses).
type retryableError struct{ err error }

func (e retryableError) Error() string { return e.err.Error() }
func (e retryableError) Unwrap() error { return e.err }

func retryable(err error) error { return retryableError{err: err} }

// run executes op, retrying on retryable errors with exponential
// backoff. Transport errors from the HTTP client are always retryable;
// op wraps status errors explicitly when they qualify.
func (c RetryConfig) run(ctx context.Context, op func(context.Context) error) error {
	delay := c.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var re retryableError
		if !errors.As(err, &re) {
			return err
		}
		if attempt >= c.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * c.Multiplier)
	}
	return lastErr
}
