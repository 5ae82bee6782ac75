package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/spigell/rfp-evaluator/internal/utils"
)

// Policy drives Retry.
type Policy struct {
	// MaxAttempts is the hard ceiling on calls, the first one included.
	MaxAttempts int `mapstructure:"max-attempts"`
	// BaseDelay is the wait after the first failure; it doubles on every retry.
	BaseDelay time.Duration `mapstructure:"base-delay"`
	// MaxDelay caps a single wait, jitter included.
	MaxDelay time.Duration `mapstructure:"max-delay"`
	// JitterRatio adds up to this fraction of the delay at random.
	JitterRatio float64 `mapstructure:"jitter"`
	// AttemptTimeout bounds each call. Zero means no per-attempt limit.
	AttemptTimeout time.Duration `mapstructure:"attempt-timeout"`
}

// DefaultPolicy returns the retry defaults used for provider calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       8 * time.Second,
		JitterRatio:    0.2,
		AttemptTimeout: 45 * time.Second,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = p.BaseDelay
	}
	if p.JitterRatio < 0 {
		p.JitterRatio = 0
	}
	return p
}

// Backoff returns the delay after the given failed attempt (1-based). r is a
// jitter sample in [0, 1).
func (p Policy) Backoff(attempt int, r float64) time.Duration {
	p = p.normalized()
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	delay += delay * p.JitterRatio * r
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}

var wait = utils.WaitFor

// Retry calls fn until it succeeds, returns an error retryable rejects, or
// the policy runs out of attempts. A per-attempt deadline that fires while ctx
// is still alive counts as retryable. Cancelling ctx stops immediately.
func Retry[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error), retryable func(error) bool) (T, error) {
	p = p.normalized()

	var (
		zero    T
		lastErr error
	)

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result, err := callOnce(ctx, p.AttemptTimeout, fn)
		if err == nil {
			return result, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}

		if !errors.Is(err, context.DeadlineExceeded) && (retryable == nil || !retryable(err)) {
			return result, err
		}

		lastErr = err
		if attempt == p.MaxAttempts {
			break
		}

		if err := wait(ctx, p.Backoff(attempt, rand.Float64())); err != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%w: failed after %d attempts: %w", ErrMaxAttempts, p.MaxAttempts, lastErr)
}

func callOnce[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}
