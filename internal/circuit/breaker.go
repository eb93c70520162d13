// Package circuit implements the hybrid multi-axis circuit breaker: one
// breaker governs one connector, tracking failures across four
// independently-thresholded axes (SI, APP, Hybrid, Domain) plus an
// overall-failure threshold, with domain-indicator isolation and an
// explicit maintenance override.
package circuit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/taxpoynt/connector-framework/internal/domain/circuit"
)

// ErrRejected is returned by Execute when the breaker refuses admission.
var ErrRejected = errors.New("circuit breaker rejected the call")

// Config tunes one Breaker instance.
type Config struct {
	AxisThresholds   map[circuit.Axis]int
	DomainThreshold  int
	TimeWindow       time.Duration
	RecoveryTimeout  time.Duration
	HalfOpenMaxCalls int
	BreakerTimeout   time.Duration
	DomainIndicators []string
	OnStateChange    func(from, to circuit.State, reason string)
}

// DefaultConfig returns sensible thresholds for a connector with no
// domain-specific tuning.
func DefaultConfig() Config {
	return Config{
		AxisThresholds: map[circuit.Axis]int{
			circuit.AxisSI:     5,
			circuit.AxisAPP:    5,
			circuit.AxisHybrid: 5,
			circuit.AxisDomain: 5,
		},
		DomainThreshold:  3,
		TimeWindow:       60 * time.Second,
		RecoveryTimeout:  30 * time.Second,
		HalfOpenMaxCalls: 3,
		BreakerTimeout:   10 * time.Second,
	}
}

// Breaker is the hybrid multi-axis circuit breaker.
type Breaker struct {
	mu sync.Mutex

	cfg   Config
	state circuit.State

	axisWindows map[circuit.Axis][]time.Time

	lastStateChange      time.Time
	lastFailureTime      time.Time
	halfOpenSuccessCount int

	totalCalls     int64
	totalSuccesses int64
	totalFailures  int64

	transitions []circuit.Transition
}

// New constructs a Breaker in the Closed state.
func New(cfg Config) *Breaker {
	if cfg.AxisThresholds == nil {
		cfg.AxisThresholds = DefaultConfig().AxisThresholds
	}
	if cfg.TimeWindow <= 0 {
		cfg.TimeWindow = DefaultConfig().TimeWindow
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultConfig().RecoveryTimeout
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = DefaultConfig().HalfOpenMaxCalls
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = DefaultConfig().BreakerTimeout
	}
	return &Breaker{
		cfg:             cfg,
		state:           circuit.StateClosed,
		axisWindows:     map[circuit.Axis][]time.Time{},
		lastStateChange: time.Now(),
	}
}

// State returns the breaker's current state.
func (b *Breaker) State() circuit.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Transitions returns a copy of the totally-ordered transition log.
func (b *Breaker) Transitions() []circuit.Transition {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]circuit.Transition, len(b.transitions))
	copy(out, b.transitions)
	return out
}

// Admit decides whether a call tagged with axis a and the given call
// context may proceed, per the admission rules for the current state.
func (b *Breaker) Admit(axis circuit.Axis, callCtx map[string]string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneWindowsLocked(time.Now())
	return b.admitLocked(axis, callCtx)
}

func (b *Breaker) admitLocked(axis circuit.Axis, callCtx map[string]string) bool {
	switch b.state {
	case circuit.StateClosed:
		return true
	case circuit.StateOpen:
		if time.Since(b.lastFailureTime) >= b.cfg.RecoveryTimeout {
			b.transitionLocked(circuit.StateHalfOpen, "recovery timeout elapsed")
			b.halfOpenSuccessCount = 0
			return true
		}
		return false
	case circuit.StateHalfOpen:
		return b.halfOpenSuccessCount < b.cfg.HalfOpenMaxCalls
	case circuit.StateSIDegraded:
		return axis != circuit.AxisSI
	case circuit.StateAPPDegraded:
		return axis != circuit.AxisAPP
	case circuit.StateHybridDegraded:
		return axis != circuit.AxisHybrid
	case circuit.StateDomainIsolated:
		return !b.matchesDomainIndicators(callCtx)
	case circuit.StateMaintenance:
		return false
	default:
		return false
	}
}

func (b *Breaker) matchesDomainIndicators(callCtx map[string]string) bool {
	if len(b.cfg.DomainIndicators) == 0 {
		return false
	}
	for _, v := range callCtx {
		for _, indicator := range b.cfg.DomainIndicators {
			if indicator != "" && strings.Contains(v, indicator) {
				return true
			}
		}
	}
	return false
}

// Execute runs fn under an effective deadline of min(callTimeout,
// breaker_timeout), classifying a deadline overrun as a timeout failure,
// and records the outcome against axis. A zero callTimeout means "use the
// breaker's own timeout".
func (b *Breaker) Execute(ctx context.Context, axis circuit.Axis, callCtx map[string]string, callTimeout time.Duration, fn func(ctx context.Context) error) error {
	if !b.Admit(axis, callCtx) {
		return ErrRejected
	}

	deadline := b.cfg.BreakerTimeout
	if callTimeout > 0 && callTimeout < deadline {
		deadline = callTimeout
	}
	callCtx2, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	err := fn(callCtx2)
	if err != nil {
		if errors.Is(callCtx2.Err(), context.DeadlineExceeded) {
			b.RecordFailure(axis, callCtx, "timeout")
		} else {
			b.RecordFailure(axis, callCtx, "error")
		}
		return err
	}
	b.RecordSuccess(axis)
	return nil
}

// RecordFailure appends now to axis's sliding window and evaluates state
// transitions in the precedence order: domain isolation, axis
// degradation, overall open, half-open re-open.
func (b *Breaker) RecordFailure(axis circuit.Axis, callCtx map[string]string, failureType string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.pruneWindowsLocked(now)
	b.axisWindows[axis] = append(b.axisWindows[axis], now)
	b.lastFailureTime = now
	b.totalCalls++
	b.totalFailures++

	if axis == circuit.AxisDomain && len(b.axisWindows[circuit.AxisDomain]) >= b.cfg.DomainThreshold {
		b.transitionLocked(circuit.StateDomainIsolated, "domain failure threshold breached")
		return
	}

	if degradedState, ok := degradedStateFor(axis); ok {
		if len(b.axisWindows[axis]) >= b.cfg.AxisThresholds[axis] {
			b.transitionLocked(degradedState, string(axis)+" axis failure threshold breached")
			return
		}
	}

	if b.sumWindowsLocked() >= b.maxThresholdLocked() {
		b.transitionLocked(circuit.StateOpen, "overall failure threshold breached")
		return
	}

	if b.state == circuit.StateHalfOpen {
		b.transitionLocked(circuit.StateOpen, "failure observed in half-open")
	}
}

func degradedStateFor(axis circuit.Axis) (circuit.State, bool) {
	switch axis {
	case circuit.AxisSI:
		return circuit.StateSIDegraded, true
	case circuit.AxisAPP:
		return circuit.StateAPPDegraded, true
	case circuit.AxisHybrid:
		return circuit.StateHybridDegraded, true
	default:
		return "", false
	}
}

// RecordSuccess increments success counters and, if the half-open call
// budget has been met, closes the breaker; a success while degraded only
// closes the breaker once the recovery timeout has also elapsed.
func (b *Breaker) RecordSuccess(axis circuit.Axis) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalCalls++
	b.totalSuccesses++

	switch b.state {
	case circuit.StateHalfOpen:
		b.halfOpenSuccessCount++
		if b.halfOpenSuccessCount >= b.cfg.HalfOpenMaxCalls {
			b.axisWindows = map[circuit.Axis][]time.Time{}
			b.transitionLocked(circuit.StateClosed, "half-open success budget reached")
		}
	case circuit.StateSIDegraded, circuit.StateAPPDegraded, circuit.StateHybridDegraded, circuit.StateDomainIsolated:
		if time.Since(b.lastFailureTime) >= b.cfg.RecoveryTimeout {
			b.transitionLocked(circuit.StateClosed, "recovery timeout elapsed while degraded")
		}
	}
}

// SetMaintenance forces the breaker into or out of Maintenance. This is
// the only entry/exit path for that state.
func (b *Breaker) SetMaintenance(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if on {
		b.transitionLocked(circuit.StateMaintenance, "maintenance enabled by operator")
	} else if b.state == circuit.StateMaintenance {
		b.transitionLocked(circuit.StateClosed, "maintenance disabled by operator")
	}
}

func (b *Breaker) pruneWindowsLocked(now time.Time) {
	cutoff := now.Add(-b.cfg.TimeWindow)
	for axis, window := range b.axisWindows {
		kept := window[:0:0]
		for _, ts := range window {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		b.axisWindows[axis] = kept
	}
}

func (b *Breaker) sumWindowsLocked() int {
	sum := 0
	for _, window := range b.axisWindows {
		sum += len(window)
	}
	return sum
}

func (b *Breaker) maxThresholdLocked() int {
	max := 0
	for _, threshold := range b.cfg.AxisThresholds {
		if threshold > max {
			max = threshold
		}
	}
	return max
}

func (b *Breaker) transitionLocked(to circuit.State, reason string) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.lastStateChange = time.Now()
	b.transitions = append(b.transitions, circuit.Transition{From: from, To: to, Reason: reason})
	if b.cfg.OnStateChange != nil {
		go b.cfg.OnStateChange(from, to, reason)
	}
}
