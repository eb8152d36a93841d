package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testPolicy(maxAttempts int) RetryPolicy {
	return LinearPolicy(maxAttempts, 5*time.Millisecond)
}

func TestRetry_Success(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testPolicy(3), func(ctx context.Context, attempt int) error {
		attempts++
		return nil
	}, nil)

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestRetry_FailureThenSuccess(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testPolicy(3), func(ctx context.Context, attempt int) error {
		attempts++
		if attempt != attempts {
			t.Errorf("Expected attempt %d, got %d", attempts, attempt)
		}
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, nil)

	if err != nil {
		t.Errorf("Expected no error after retries, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_MaxAttempts(t *testing.T) {
	attempts := 0
	cause := errors.New("persistent error")
	err := Retry(context.Background(), testPolicy(3), func(ctx context.Context, attempt int) error {
		attempts++
		return cause
	}, nil)

	if err == nil {
		t.Fatal("Expected error after max attempts")
	}
	if !IsExhausted(err) {
		t.Errorf("Expected exhausted error, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("Expected exhausted error to wrap cause, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_NonRetryableError(t *testing.T) {
	attempts := 0
	isRetryable := func(err error) bool {
		return false // All errors are non-retryable
	}

	err := Retry(context.Background(), testPolicy(3), func(ctx context.Context, attempt int) error {
		attempts++
		return errors.New("non-retryable error")
	}, isRetryable)

	if err == nil {
		t.Error("Expected error")
	}
	if IsExhausted(err) {
		t.Error("Expected non-retryable error to be returned as is")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for non-retryable error, got %d", attempts)
	}
}

func TestRetry_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := LinearPolicy(3, 10*time.Second)

	attempts := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Retry(ctx, policy, func(ctx context.Context, attempt int) error {
		attempts++
		return errors.New("device busy")
	}, nil)
	elapsed := time.Since(start)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt before cancellation, got %d", attempts)
	}
	if elapsed > time.Second {
		t.Errorf("Expected cancellation to interrupt backoff, took %v", elapsed)
	}
}

func TestRetry_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Retry(ctx, testPolicy(3), func(ctx context.Context, attempt int) error {
		attempts++
		return nil
	}, nil)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if attempts != 0 {
		t.Errorf("Expected no attempts, got %d", attempts)
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	tests := []struct {
		name     string
		policy   RetryPolicy
		attempt  int
		expected time.Duration
	}{
		{"linear first", LinearPolicy(3, 500*time.Millisecond), 1, 500 * time.Millisecond},
		{"linear second", LinearPolicy(3, 500*time.Millisecond), 2, 1 * time.Second},
		{"linear third", LinearPolicy(3, 500*time.Millisecond), 3, 1500 * time.Millisecond},
		{"exponential first", ExponentialPolicy(3, time.Second, 2*time.Minute), 1, time.Second},
		{"exponential second", ExponentialPolicy(3, time.Second, 2*time.Minute), 2, 2 * time.Second},
		{"exponential third", ExponentialPolicy(3, time.Second, 2*time.Minute), 3, 4 * time.Second},
		{"exponential capped", ExponentialPolicy(10, time.Second, 2*time.Minute), 9, 2 * time.Minute},
		{"zero attempt treated as first", LinearPolicy(3, time.Second), 0, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Delay(tt.attempt); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestSleep_Interrupted(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := Sleep(ctx, 5*time.Second)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Expected Sleep to return promptly on cancellation")
	}
}

func TestFailureCounter_TripsAtThreshold(t *testing.T) {
	fc := NewFailureCounter(3)

	if fc.RecordFailure() {
		t.Error("Expected no trip after 1 failure")
	}
	if fc.RecordFailure() {
		t.Error("Expected no trip after 2 failures")
	}
	if !fc.RecordFailure() {
		t.Error("Expected trip after 3 failures")
	}

	fc.Reset()
	if fc.Consecutive() != 0 {
		t.Errorf("Expected 0 consecutive failures after reset, got %d", fc.Consecutive())
	}

	total, trips := fc.GetStats()
	if total != 3 || trips != 1 {
		t.Errorf("Expected total=3 trips=1, got total=%d trips=%d", total, trips)
	}
}

func TestFailureCounter_SuccessClearsStreak(t *testing.T) {
	fc := NewFailureCounter(2)

	fc.RecordFailure()
	fc.RecordSuccess()
	if fc.RecordFailure() {
		t.Error("Expected success to clear the streak")
	}
}
