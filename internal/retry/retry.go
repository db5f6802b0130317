// Package retry provides a small bounded-retry combinator used for
// operations that race against sandbox startup, like dialing the agent or
// finding the student's shell process.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Policy defines retry behavior for a specific operation type.
type Policy struct {
	MaxRetries   int           // Maximum number of retry attempts (0 = no retries)
	InitialDelay time.Duration // Delay before the first retry
	MaxDelay     time.Duration // Maximum delay cap (0 = no cap)
	Multiplier   float64       // Backoff multiplier; 1.0 keeps the delay constant
	Jitter       bool          // Whether to add random jitter to delays
}

// Func is a function that can be retried.
type Func[T any] func(ctx context.Context) (T, error)

// ExhaustedError is returned when every attempt failed. It unwraps to the
// last error so callers can still match on the underlying cause.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Do executes fn until it succeeds or the policy is exhausted. onRetry, if
// non-nil, is called before each wait. The final failure is wrapped in an
// ExhaustedError; context cancellation during a wait is returned as-is.
func Do[T any](
	ctx context.Context,
	policy Policy,
	fn Func[T],
	onRetry func(attempt int, delay time.Duration, err error),
) (T, error) {
	var zero T

	attempt := 0

	for {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		if attempt >= policy.MaxRetries {
			return zero, &ExhaustedError{Attempts: attempt + 1, Last: err}
		}

		delay := calculateDelay(policy, attempt)

		if onRetry != nil {
			onRetry(attempt+1, delay, err)
		}

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(delay):
		}

		attempt++
	}
}

// calculateDelay computes the delay for a retry attempt.
func calculateDelay(policy Policy, attempt int) time.Duration {
	multiplier := policy.Multiplier
	if multiplier <= 0 {
		multiplier = 1.0
	}

	delay := float64(policy.InitialDelay) * math.Pow(multiplier, float64(attempt))

	if policy.MaxDelay > 0 && delay > float64(policy.MaxDelay) {
		delay = float64(policy.MaxDelay)
	}

	// 0-20% random variation
	if policy.Jitter {
		delay += rand.Float64() * 0.2 * delay
	}

	return time.Duration(delay)
}
