// Package circuitbreaker guards the upstream intent resolver: repeated
// resolution failures trip the breaker so the chat surface fails fast instead
// of queueing 30-second timeouts against a dead endpoint.
package circuitbreaker

import (
	"sync"
	"time"
)

// CircuitBreaker implements the circuit breaker pattern.
type CircuitBreaker struct {
	enabled       bool
	failureCount  int
	failureWindow time.Duration
	failThreshold int
	resetTimeout  time.Duration
	lastFailure   time.Time
	tripped       bool
	tripTime      time.Time
	mu            sync.Mutex
}

// Snapshot is a point-in-time view of the breaker state.
type Snapshot struct {
	Open         bool
	FailureCount int
	LastFailure  time.Time
	TrippedAt    time.Time
}

// New creates a new circuit breaker.
func New(enabled bool, threshold int, window time.Duration, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		enabled:       enabled,
		failThreshold: threshold,
		failureWindow: window,
		resetTimeout:  resetTimeout,
	}
}

// RecordFailure records a failure and trips the circuit if the threshold is
// exceeded inside the failure window. Returns true when the circuit is open
// after recording.
func (cb *CircuitBreaker) RecordFailure() bool {
	if !cb.enabled {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()

	// An already tripped circuit stays open until the reset timeout elapses.
	if cb.tripped {
		if now.Sub(cb.tripTime) > cb.resetTimeout {
			cb.tripped = false
			cb.failureCount = 0
		} else {
			return true
		}
	}

	// Failures outside the window no longer count.
	if now.Sub(cb.lastFailure) > cb.failureWindow {
		cb.failureCount = 0
	}

	cb.failureCount++
	cb.lastFailure = now

	if cb.failureCount >= cb.failThreshold {
		cb.tripped = true
		cb.tripTime = now
		return true
	}

	return false
}

// RecordSuccess clears the failure count after a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	if !cb.enabled {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.tripped {
		cb.failureCount = 0
	}
}

// IsOpen returns true if the circuit is open (tripped).
func (cb *CircuitBreaker) IsOpen() bool {
	if !cb.enabled {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	// A tripped circuit half-opens once the reset timeout has passed.
	if cb.tripped && time.Since(cb.tripTime) > cb.resetTimeout {
		cb.tripped = false
		cb.failureCount = 0
		return false
	}

	return cb.tripped
}

// Reset manually closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.tripped = false
	cb.failureCount = 0
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Snapshot{
		Open:         cb.tripped,
		FailureCount: cb.failureCount,
		LastFailure:  cb.lastFailure,
		TrippedAt:    cb.tripTime,
	}
}

// IsEnabled returns true if the circuit breaker is enabled.
func (cb *CircuitBreaker) IsEnabled() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.enabled
}
