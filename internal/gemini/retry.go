package gemini

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy retries rate-limited calls with uncapped exponential backoff.
// Non-rate-limit failures propagate immediately without a retry.
type RetryPolicy struct {
	// MaxAttempts is the total attempt ceiling, including the first call.
	MaxAttempts int

	// InitialDelay is the wait before the first retry. Each subsequent
	// retry multiplies the previous delay by Multiplier. No cap, no jitter.
	InitialDelay time.Duration
	Multiplier   float64

	// Sleep is overridable in tests. Nil means time.Sleep.
	Sleep func(time.Duration)
}

// DefaultRetryPolicy returns the policy used for pipeline calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  4,
		InitialDelay: 5 * time.Second,
		Multiplier:   2.0,
	}
}

// Do invokes fn until it succeeds or the attempt ceiling is reached.
// A rate-limited failure logs the attempt and delay, waits, and retries.
// Any other failure is returned as-is from the attempt that produced it.
// Exhausting every attempt on rate limits returns an error wrapping
// ErrQuotaExhausted.
func (p RetryPolicy) Do(ctx context.Context, logger *zap.Logger, label string, fn func(context.Context) (string, error)) (string, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		text, err := fn(ctx)
		if err == nil {
			return text, nil
		}
		if !IsRateLimited(err) {
			return "", err
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		if logger != nil {
			logger.Warn("rate limited, backing off",
				zap.String("label", label),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", attempts),
				zap.Duration("delay", delay))
		}
		sleep(delay)
		delay = time.Duration(float64(delay) * p.Multiplier)
	}

	return "", fmt.Errorf("%s after %d attempts: %w (last error: %v)", label, attempts, ErrQuotaExhausted, lastErr)
}
