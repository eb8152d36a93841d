package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Growth selects how the delay between attempts grows
type Growth int

const (
	GrowthLinear      Growth = iota // attempt * BaseDelay
	GrowthExponential               // BaseDelay * Multiplier^(attempt-1)
)

// RetryPolicy holds configuration for retry logic.
// It is a plain value so each retrying component can be handed its own copy.
type RetryPolicy struct {
	MaxAttempts int           // Maximum number of attempts, including the first
	BaseDelay   time.Duration // Delay after the first failed attempt
	MaxDelay    time.Duration // Cap for any single delay (0 = uncapped)
	Growth      Growth        // Growth function between attempts
	Multiplier  float64       // Multiplier for exponential growth
}

// LinearPolicy returns a policy whose delay is attempt × base
func LinearPolicy(maxAttempts int, base time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   base,
		Growth:      GrowthLinear,
	}
}

// ExponentialPolicy returns a policy that doubles the delay after each failure up to max
func ExponentialPolicy(maxAttempts int, base, max time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   base,
		MaxDelay:    max,
		Growth:      GrowthExponential,
		Multiplier:  2.0,
	}
}

// Delay returns the backoff owed after the given failed attempt (1-based)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var d time.Duration
	switch p.Growth {
	case GrowthExponential:
		multiplier := p.Multiplier
		if multiplier <= 0 {
			multiplier = 2.0
		}
		d = time.Duration(float64(p.BaseDelay) * math.Pow(multiplier, float64(attempt-1)))
	default:
		d = time.Duration(attempt) * p.BaseDelay
	}

	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// RetryableFunc is a function that can be retried. attempt is 1-based.
type RetryableFunc func(ctx context.Context, attempt int) error

// IsRetryableError checks if an error is retryable
type IsRetryableError func(error) bool

// ExhaustedError is returned by Retry once every attempt has failed
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Retry executes fn until it succeeds, the budget is exhausted, the error is not
// retryable, or ctx is cancelled. Cancellation is checked at the top of every
// attempt and interrupts any backoff in progress.
func Retry(ctx context.Context, policy RetryPolicy, fn RetryableFunc, isRetryable IsRetryableError) error {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		// Cancellation is never retried
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if isRetryable != nil && !isRetryable(err) {
			return err
		}

		// Don't sleep after the last attempt
		if attempt < maxAttempts {
			if err := Sleep(ctx, policy.Delay(attempt)); err != nil {
				return err
			}
		}
	}

	return &ExhaustedError{Attempts: maxAttempts, Err: lastErr}
}

// Sleep waits for d or until ctx is done, whichever comes first
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsExhausted reports whether err came from a Retry that used its full budget
func IsExhausted(err error) bool {
	var exhausted *ExhaustedError
	return errors.As(err, &exhausted)
}
