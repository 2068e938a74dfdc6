// Package retry wraps dispatcher calls in a classify-then-backoff loop
// with exponential delays. Backoff suspends only the current logical call;
// it never blocks other pipeline invocations.
package retry

import (
	"context"
	"errors"
	"math"
	"time"

	gwerrors "github.com/modelrelay/modelrelay/pkg/errors"
)

// Policy controls the retry loop.
type Policy struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`

	// RetryOn lists the error kinds eligible for retry. An error must
	// both carry a kind in this list and be marked retryable.
	RetryOn []string `yaml:"retry_on" json:"retry_on"`
}

// DefaultPolicy matches the baseline: three attempts, 1s initial delay,
// doubling, retrying timeouts and retryable provider failures.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Multiplier:   2.0,
		RetryOn:      []string{gwerrors.TypeTimeout, gwerrors.TypeProviderRequest},
	}
}

// Delay returns the backoff before attempt n+1, for n >= 1:
// initial * multiplier^(n-1).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return p.InitialDelay
	}
	return time.Duration(float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1)))
}

func (p Policy) shouldRetry(err error) bool {
	if !gwerrors.IsRetryable(err) {
		return false
	}
	kind := gwerrors.Kind(err)
	for _, k := range p.RetryOn {
		if k == kind {
			return true
		}
	}
	return false
}

// Do runs fn up to MaxAttempts times. Retryable failures back off on a
// cancellable timer; a non-retryable failure returns immediately. When
// every attempt fails, the result is a retries-exhausted error wrapping
// the final attempt's error, distinct from any mid-loop failure.
func Do[T any](ctx context.Context, p Policy, provider, model string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(p.Delay(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				// A deadline is a timeout; an explicit cancel is not.
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return zero, gwerrors.NewTimeout(provider, model, ctx.Err())
				}
				return zero, gwerrors.NewCanceled(provider, model, ctx.Err())
			case <-timer.C:
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !p.shouldRetry(err) {
			return zero, err
		}
	}

	return zero, gwerrors.NewRetriesExhausted(provider, model, p.MaxAttempts, lastErr)
}
