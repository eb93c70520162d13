package health

import (
	"sync"
	"time"
)

// BreakerState is one of the three states the simple gate can be in.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// simpleBreaker is the §4.7 connector-level gate: a single failure
// counter against a threshold, unlike internal/circuit.Breaker's
// multi-axis sliding windows. It exists to let external callers decide
// whether to route traffic to a connector at all.
type simpleBreaker struct {
	mu sync.Mutex

	state            BreakerState
	failureCount     int
	lastFailureTime  time.Time
	nextAttemptTime  time.Time
	failureThreshold int
	recoveryTimeout  time.Duration
}

func newSimpleBreaker(failureThreshold int, recoveryTimeout time.Duration) *simpleBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 30 * time.Second
	}
	return &simpleBreaker{
		state:            BreakerClosed,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
	}
}

// Allow reports whether a call should be routed to the connector right
// now, transitioning Open->HalfOpen once the recovery timeout elapses.
func (b *simpleBreaker) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if now.Before(b.nextAttemptTime) {
			return false
		}
		b.state = BreakerHalfOpen
		return true
	default:
		return true
	}
}

// RecordSuccess closes the breaker, clearing the failure count.
func (b *simpleBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failureCount = 0
}

// RecordFailure increments the failure count, opening the breaker once
// the threshold is reached (or immediately on a half-open probe failure).
func (b *simpleBreaker) RecordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailureTime = now

	if b.state == BreakerHalfOpen || b.failureCount >= b.failureThreshold {
		b.state = BreakerOpen
		b.nextAttemptTime = now.Add(b.recoveryTimeout)
	}
}

// Snapshot returns the breaker's current field values for read-only export.
func (b *simpleBreaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSnapshot{
		State:            b.state,
		FailureCount:     b.failureCount,
		LastFailureTime:  b.lastFailureTime,
		NextAttemptTime:  b.nextAttemptTime,
		FailureThreshold: b.failureThreshold,
		RecoveryTimeout:  b.recoveryTimeout,
	}
}

// BreakerSnapshot is a read-only copy of a simpleBreaker's fields,
// exactly matching the §4.7 connector-level breaker shape.
type BreakerSnapshot struct {
	State            BreakerState
	FailureCount     int
	LastFailureTime  time.Time
	NextAttemptTime  time.Time
	FailureThreshold int
	RecoveryTimeout  time.Duration
}
