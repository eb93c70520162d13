package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSimpleBreakerOpensAfterThreshold(t *testing.T) {
	b := newSimpleBreaker(3, time.Minute)
	now := time.Now()

	assert.True(t, b.Allow(now))
	b.RecordFailure(now)
	b.RecordFailure(now)
	assert.Equal(t, BreakerClosed, b.Snapshot().State)

	b.RecordFailure(now)
	snap := b.Snapshot()
	assert.Equal(t, BreakerOpen, snap.State)
	assert.Equal(t, 3, snap.FailureCount)
}

func TestSimpleBreakerBlocksWhileOpenThenHalfOpens(t *testing.T) {
	b := newSimpleBreaker(1, 10*time.Second)
	now := time.Now()

	b.RecordFailure(now)
	assert.Equal(t, BreakerOpen, b.Snapshot().State)
	assert.False(t, b.Allow(now.Add(time.Second)))

	assert.True(t, b.Allow(now.Add(11*time.Second)))
	assert.Equal(t, BreakerHalfOpen, b.Snapshot().State)
}

func TestSimpleBreakerHalfOpenFailureReopens(t *testing.T) {
	b := newSimpleBreaker(1, 10*time.Second)
	now := time.Now()

	b.RecordFailure(now)
	b.Allow(now.Add(11 * time.Second))
	assert.Equal(t, BreakerHalfOpen, b.Snapshot().State)

	b.RecordFailure(now.Add(12 * time.Second))
	assert.Equal(t, BreakerOpen, b.Snapshot().State)
}

func TestSimpleBreakerSuccessClosesAndResets(t *testing.T) {
	b := newSimpleBreaker(2, time.Minute)
	now := time.Now()

	b.RecordFailure(now)
	b.RecordSuccess()
	snap := b.Snapshot()
	assert.Equal(t, BreakerClosed, snap.State)
	assert.Equal(t, 0, snap.FailureCount)
}
