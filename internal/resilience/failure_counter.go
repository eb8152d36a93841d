package resilience

import (
	"sync"
)

// FailureCounter counts consecutive failures and trips once a threshold is reached.
// Unlike a circuit breaker it never rejects calls; the owner decides what a trip
// means (usually a cool-down) and resets the counter afterwards.
type FailureCounter struct {
	threshold int

	mu          sync.Mutex
	consecutive int
	total       int64
	trips       int64
}

// NewFailureCounter creates a counter that trips after threshold consecutive failures
func NewFailureCounter(threshold int) *FailureCounter {
	if threshold < 1 {
		threshold = 1
	}
	return &FailureCounter{threshold: threshold}
}

// RecordFailure records a failure and reports whether the threshold has been reached
func (f *FailureCounter) RecordFailure() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.consecutive++
	f.total++
	if f.consecutive >= f.threshold {
		f.trips++
		return true
	}
	return false
}

// RecordSuccess clears the consecutive failure streak
func (f *FailureCounter) RecordSuccess() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consecutive = 0
}

// Reset clears the consecutive failure streak after a cool-down
func (f *FailureCounter) Reset() {
	f.RecordSuccess()
}

// Consecutive returns the current failure streak
func (f *FailureCounter) Consecutive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.consecutive
}

// GetStats returns lifetime failure and trip counts
func (f *FailureCounter) GetStats() (total, trips int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total, f.trips
}
