package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls retry behavior with exponential backoff and jitter.
// The zero value is usable in tests: one attempt, no delay, no jitter once
// defaults are suppressed via explicit fields.
type RetryConfig struct {
	// MaxRetries is the number of additional attempts after the first
	// try. Default: 3 (four total attempts).
	MaxRetries int

	// BaseDelay is the delay before the first retry and the upper bound
	// of the random jitter added to every retry. Default: 1s.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff. Default: 10s.
	MaxDelay time.Duration

	// Jitter disables the random [0, BaseDelay) addition when false.
	// Default: true. Tests inject false for determinism.
	Jitter bool

	// ShouldRetry optionally overrides the default transient-error check.
	// If nil, IsTransient is used.
	ShouldRetry func(err error) bool
}

// DefaultRetryConfig returns the retry configuration used for API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		Jitter:     true,
	}
}

// Execute runs fn under the retry policy, retrying only transient
// failures. Each attempt emits one structured log event. On a
// non-retryable error or an exhausted budget it returns a *FatalError
// carrying the label, total attempt count, and last cause.
func Execute[T any](ctx context.Context, cfg RetryConfig, label string, fn func(ctx context.Context) (T, error)) (T, error) {
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	attempts := cfg.MaxRetries + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, &FatalError{Label: label, Attempts: attempt, Cause: lastErr}
		}
		if !shouldRetry(lastErr) {
			zap.L().Warn("retry: non-retryable failure",
				zap.String("label", label),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			return zero, &FatalError{Label: label, Attempts: attempt, Cause: lastErr}
		}
		if attempt == attempts {
			break
		}

		delay := backoffDelay(attempt, cfg)
		zap.L().Warn("retry: transient failure, backing off",
			zap.String("label", label),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, &FatalError{Label: label, Attempts: attempt, Cause: lastErr}
		case <-timer.C:
		}
	}

	zap.L().Error("retry: budget exhausted",
		zap.String("label", label),
		zap.Int("attempts", attempts),
		zap.Error(lastErr),
	)
	return zero, &FatalError{Label: label, Attempts: attempts, Cause: lastErr}
}

// backoffDelay computes the delay before retry n (1-based):
// min(MaxDelay, BaseDelay * 2^(n-1)) plus jitter in [0, BaseDelay).
func backoffDelay(retry int, cfg RetryConfig) time.Duration {
	delay := cfg.BaseDelay << (retry - 1)
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	if cfg.Jitter && cfg.BaseDelay > 0 {
		delay += time.Duration(rand.Int64N(int64(cfg.BaseDelay)))
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}
