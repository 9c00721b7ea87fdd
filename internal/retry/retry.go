package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMaxRetriesExceeded indicates all retry attempts failed.
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// RetryableFunc is the function signature for operations that can be retried.
type RetryableFunc func(ctx context.Context, attempt int) error

// RetryCondition determines if an error should trigger a retry.
type RetryCondition func(err error) bool

// Config holds retry configuration.
type Config struct {
	MaxAttempts       int
	Delay             time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	ShouldRetry       RetryCondition
	OnRetry           func(attempt int, delay time.Duration, err error)
}

// Option configures retry behavior.
type Option func(*Config)

// DefaultConfig returns a fixed delay policy.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       10,
		Delay:             2 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 1.0,
	}
}

// WithMaxAttempts sets the maximum number of attempts (includes initial attempt).
func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		c.MaxAttempts = n
	}
}

// WithDelay sets the delay before the first retry.
func WithDelay(d time.Duration) Option {
	return func(c *Config) {
		if d < 0 {
			d = 0
		}
		c.Delay = d
	}
}

// WithBackoffMultiplier sets the growth factor applied to the delay after each retry.
func WithBackoffMultiplier(m float64) Option {
	return func(c *Config) {
		if m < 1.0 {
			m = 1.0
		}
		c.BackoffMultiplier = m
	}
}

// WithRetryCondition sets the function that determines retryable errors.
func WithRetryCondition(cond RetryCondition) Option {
	return func(c *Config) {
		c.ShouldRetry = cond
	}
}

// WithOnRetry registers a callback invoked before each wait.
func WithOnRetry(fn func(attempt int, delay time.Duration, err error)) Option {
	return func(c *Config) {
		c.OnRetry = fn
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts are
// used up, or ctx is done. Attempts run sequentially.
func Do(ctx context.Context, fn RetryableFunc, opts ...Option) error {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.MaxAttempts <= 0 {
		return fmt.Errorf("%w: no attempts configured", ErrMaxRetriesExceeded)
	}

	var lastErr error
	delay := cfg.Delay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = nextDelay(delay, cfg.BackoffMultiplier, cfg.MaxDelay)
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetriesExceeded, cfg.MaxAttempts, lastErr)
}

func nextDelay(delay time.Duration, multiplier float64, maxDelay time.Duration) time.Duration {
	if multiplier <= 1.0 {
		if maxDelay > 0 {
			return min(delay, maxDelay)
		}
		return delay
	}

	result := float64(delay) * multiplier
	if math.IsInf(result, 0) || math.IsNaN(result) || result > float64(math.MaxInt64) {
		return maxDelay
	}

	next := time.Duration(result)
	if next < 0 {
		return maxDelay
	}
	if maxDelay > 0 {
		return min(next, maxDelay)
	}
	return next
}
