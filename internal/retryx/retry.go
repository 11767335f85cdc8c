package retryx

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// Policy parameterizes with_retry. Mirrors spec defaults: 3 attempts,
// 1s base delay, 2.0 backoff factor, jitter enabled, a longer delay
// class for rate-limited responses.
type Policy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	BackoffFactor     float64
	Jitter            bool
	RateLimitBaseDelay time.Duration
}

// DefaultPolicy matches spec.md §4.1 defaults.
var DefaultPolicy = Policy{
	MaxAttempts:        3,
	BaseDelay:          1 * time.Second,
	BackoffFactor:      2.0,
	Jitter:             true,
	RateLimitBaseDelay: 2 * time.Second,
}

func (p Policy) normalized() Policy {
	out := p
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if out.BaseDelay <= 0 {
		out.BaseDelay = DefaultPolicy.BaseDelay
	}
	if out.BackoffFactor <= 1.0 {
		out.BackoffFactor = DefaultPolicy.BackoffFactor
	}
	if out.RateLimitBaseDelay <= 0 {
		out.RateLimitBaseDelay = out.BaseDelay * 2
	}
	return out
}

// jitteredDelay applies up to 25% positive jitter via crypto/rand,
// matching the teacher's calculateNextBackoff pattern exactly.
func jitteredDelay(base time.Duration, enabled bool) time.Duration {
	if !enabled {
		return base
	}
	maxJitter := int64(base / 4)
	if maxJitter <= 0 {
		return base
	}
	jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
	if err != nil {
		return base
	}
	return base + time.Duration(jitterVal.Int64())
}

// WithRetry executes op under the given policy. Errors classified
// RetriableError or RateLimitError are retried (on their respective
// backoff schedules, doubling each attempt up to MaxAttempts);
// NonRetriableError and context cancellation are surfaced immediately
// with the original cause chained. Exhausting the attempt budget returns
// the last error observed.
func WithRetry[T any](ctx context.Context, op func(ctx context.Context) (T, error), policy Policy) (T, error) {
	var zero T
	p := policy.normalized()

	delay := p.BaseDelay
	rateLimitDelay := p.RateLimitBaseDelay

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("operation canceled: %w", err)
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var nre *NonRetriableError
		if errors.As(err, &nre) {
			return zero, fmt.Errorf("attempt %d/%d: %w", attempt, p.MaxAttempts, err)
		}

		if attempt == p.MaxAttempts {
			break
		}

		var rle *RateLimitError
		wait := delay
		if errors.As(err, &rle) {
			wait = rateLimitDelay
			rateLimitDelay = nextBackoff(rateLimitDelay, p.BackoffFactor)
		} else if IsRetriable(err) {
			delay = nextBackoff(delay, p.BackoffFactor)
		} else {
			// Unclassified error: treat as non-retriable per spec §4.1
			// ("fails with NonRetriableError when the operation raises an
			// unrecognised fatal condition").
			return zero, fmt.Errorf("unrecognised error, attempt %d/%d: %w", attempt, p.MaxAttempts, err)
		}

		select {
		case <-time.After(jitteredDelay(wait, p.Jitter)):
		case <-ctx.Done():
			return zero, fmt.Errorf("operation canceled during backoff: %w", ctx.Err())
		}
	}

	return zero, fmt.Errorf("exhausted %d attempts: %w", p.MaxAttempts, lastErr)
}

func nextBackoff(current time.Duration, factor float64) time.Duration {
	return time.Duration(float64(current) * factor)
}
