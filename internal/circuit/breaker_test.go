package circuit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domaincircuit "github.com/taxpoynt/connector-framework/internal/domain/circuit"
)

func TestClosedAdmitsEveryAxis(t *testing.T) {
	b := New(DefaultConfig())
	assert.True(t, b.Admit(domaincircuit.AxisSI, nil))
	assert.True(t, b.Admit(domaincircuit.AxisAPP, nil))
	assert.True(t, b.Admit(domaincircuit.AxisHybrid, nil))
	assert.True(t, b.Admit(domaincircuit.AxisDomain, nil))
}

func TestAxisDegradedRejectsOnlyThatAxis(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AxisThresholds[domaincircuit.AxisSI] = 2
	b := New(cfg)

	b.RecordFailure(domaincircuit.AxisSI, nil, "error")
	b.RecordFailure(domaincircuit.AxisSI, nil, "error")

	assert.Equal(t, domaincircuit.StateSIDegraded, b.State())
	assert.False(t, b.Admit(domaincircuit.AxisSI, nil))
	assert.True(t, b.Admit(domaincircuit.AxisAPP, nil))
	assert.True(t, b.Admit(domaincircuit.AxisHybrid, nil))
}

func TestDomainIsolationRejectsByIndicatorSubstring(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DomainThreshold = 1
	cfg.DomainIndicators = []string{"nigeria-vat"}
	b := New(cfg)

	b.RecordFailure(domaincircuit.AxisDomain, nil, "error")
	assert.Equal(t, domaincircuit.StateDomainIsolated, b.State())

	assert.False(t, b.Admit(domaincircuit.AxisAPP, map[string]string{"category": "nigeria-vat-invoice"}))
	assert.True(t, b.Admit(domaincircuit.AxisAPP, map[string]string{"category": "generic"}))
}

func TestMaintenanceRejectsEverything(t *testing.T) {
	b := New(DefaultConfig())
	b.SetMaintenance(true)
	assert.Equal(t, domaincircuit.StateMaintenance, b.State())
	assert.False(t, b.Admit(domaincircuit.AxisSI, nil))
	assert.False(t, b.Admit(domaincircuit.AxisDomain, nil))

	b.SetMaintenance(false)
	assert.Equal(t, domaincircuit.StateClosed, b.State())
	assert.True(t, b.Admit(domaincircuit.AxisSI, nil))
}

// TestOpenToHalfOpenToClosedAndReopen walks the boundary scenario: si=2,
// recovery_timeout=10ms (scaled down from the spec's 10s for test speed),
// half_open_max_calls=2. Two SI failures degrade SI; a Hybrid failure
// pushes the combined window over the overall threshold into Open. After
// the recovery timeout, the next admission observes HalfOpen; two
// successes close the breaker; a fresh run of APP and Hybrid failures,
// neither reaching its own threshold, reopens it.
func TestOpenToHalfOpenToClosedAndReopen(t *testing.T) {
	cfg := Config{
		AxisThresholds: map[domaincircuit.Axis]int{
			domaincircuit.AxisSI:     2,
			domaincircuit.AxisAPP:    3,
			domaincircuit.AxisHybrid: 3,
			domaincircuit.AxisDomain: 3,
		},
		DomainThreshold:  10,
		TimeWindow:       time.Minute,
		RecoveryTimeout:  10 * time.Millisecond,
		HalfOpenMaxCalls: 2,
		BreakerTimeout:   time.Second,
	}
	b := New(cfg)

	b.RecordFailure(domaincircuit.AxisSI, nil, "error")
	b.RecordFailure(domaincircuit.AxisSI, nil, "error")
	assert.Equal(t, domaincircuit.StateSIDegraded, b.State())

	b.RecordFailure(domaincircuit.AxisHybrid, nil, "error")
	assert.Equal(t, domaincircuit.StateOpen, b.State())
	assert.False(t, b.Admit(domaincircuit.AxisAPP, nil))

	time.Sleep(15 * time.Millisecond)
	assert.True(t, b.Admit(domaincircuit.AxisAPP, nil))
	assert.Equal(t, domaincircuit.StateHalfOpen, b.State())

	b.RecordSuccess(domaincircuit.AxisAPP)
	assert.Equal(t, domaincircuit.StateHalfOpen, b.State())
	b.RecordSuccess(domaincircuit.AxisAPP)
	assert.Equal(t, domaincircuit.StateClosed, b.State())

	// Reopen via a fresh cycle: spread failures across two axes so neither
	// individually reaches its own threshold, but the combined window
	// breaches the overall max(axis thresholds).
	for i := 0; i < 1; i++ {
		b.RecordFailure(domaincircuit.AxisAPP, nil, "error")
	}
	for i := 0; i < 2; i++ {
		b.RecordFailure(domaincircuit.AxisHybrid, nil, "error")
	}
	assert.Equal(t, domaincircuit.StateOpen, b.State())
}

func TestExecuteRecordsFailureOnDeadlineOverrun(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AxisThresholds[domaincircuit.AxisSI] = 1
	b := New(cfg)

	err := b.Execute(context.Background(), domaincircuit.AxisSI, nil, 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.Error(t, err)
	assert.Equal(t, domaincircuit.StateSIDegraded, b.State())
}

func TestExecuteRejectsWhenDegraded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AxisThresholds[domaincircuit.AxisSI] = 1
	b := New(cfg)

	b.RecordFailure(domaincircuit.AxisSI, nil, "error")
	require.Equal(t, domaincircuit.StateSIDegraded, b.State())

	err := b.Execute(context.Background(), domaincircuit.AxisSI, nil, 0, func(ctx context.Context) error {
		t.Fatal("fn should not run when rejected")
		return nil
	})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestWindowPruning(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AxisThresholds[domaincircuit.AxisSI] = 3
	cfg.TimeWindow = 10 * time.Millisecond
	b := New(cfg)

	b.RecordFailure(domaincircuit.AxisSI, nil, "error")
	b.RecordFailure(domaincircuit.AxisSI, nil, "error")
	time.Sleep(20 * time.Millisecond)
	b.RecordFailure(domaincircuit.AxisSI, nil, "error")

	assert.Equal(t, domaincircuit.StateClosed, b.State())
}
