// Package model holds the health monitor's plain data shapes: scheduled
// checks, alerts, and metrics. internal/health owns the scheduler,
// connector stats, and breaker logic built on top of these.
package model

import (
	"context"
	"time"
)

// Status is the monitor's own health bucket, distinct from
// internal/domain/connector.Status.
type Status string

const (
	StatusHealthy   Status = "Healthy"
	StatusDegraded  Status = "Degraded"
	StatusUnhealthy Status = "Unhealthy"
)

// CheckFunc is a health check's async probe. A non-nil error is treated
// as Unhealthy.
type CheckFunc func(ctx context.Context) error

// HealthCheck is one scheduled probe.
type HealthCheck struct {
	Name     string
	Check    CheckFunc
	Interval time.Duration
	Timeout  time.Duration
	Critical bool

	lastRun             time.Time
	lastStatus          Status
	consecutiveFailures int
}

// LastRun, LastStatus, and ConsecutiveFailures expose a check's most
// recent scheduler outcome.
func (h *HealthCheck) LastRun() time.Time       { return h.lastRun }
func (h *HealthCheck) LastStatus() Status       { return h.lastStatus }
func (h *HealthCheck) ConsecutiveFailures() int { return h.consecutiveFailures }

// RecordRun is called by the scheduler after each probe to update the
// check's last-run bookkeeping.
func (h *HealthCheck) RecordRun(at time.Time, err error) {
	h.lastRun = at
	if err != nil {
		h.consecutiveFailures++
		h.lastStatus = StatusUnhealthy
		return
	}
	h.consecutiveFailures = 0
	h.lastStatus = StatusHealthy
}

// MetricType enumerates the shapes a Metric's value can take.
type MetricType string

const (
	MetricCounter   MetricType = "Counter"
	MetricGauge     MetricType = "Gauge"
	MetricHistogram MetricType = "Histogram"
	MetricTimer     MetricType = "Timer"
)

// Metric is one recorded data point kept in the monitor's bounded FIFO log.
type Metric struct {
	Name      string
	Value     float64
	Type      MetricType
	Timestamp time.Time
	Tags      map[string]string
}

// AlertSeverity ranks an alert's urgency.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// ConnectorStatsView is the read-only shape an AlertCondition is
// evaluated against; internal/health.ConnectorStatsSnapshot carries the
// same fields plus a health-local breaker snapshot and projects down to
// this shape through its View method.
type ConnectorStatsView struct {
	ConnectorID      string
	TotalRequests    int64
	TotalErrors      int64
	AvgResponseMS    float64
	ErrorRatePercent float64
	ThroughputPerSec float64
	UptimeStart      time.Time
	Status           Status
}

// AlertCondition is a pure function of a connector's stats snapshot; it
// returns true when the alert should be active.
type AlertCondition func(stats ConnectorStatsView) bool

// AlertHandler is invoked, in registration order, whenever an alert fires.
type AlertHandler func(alert *Alert, stats ConnectorStatsView)

// Alert is one registered condition/handler pair evaluated on every
// scheduler tick.
type Alert struct {
	Name     string
	Severity AlertSeverity
	Message  string
	Cooldown time.Duration
	Handler  AlertHandler

	Condition AlertCondition

	active        bool
	lastTriggered time.Time
}

// Active and LastTriggered expose an alert's current firing state.
func (a *Alert) Active() bool             { return a.active }
func (a *Alert) LastTriggered() time.Time { return a.lastTriggered }

// Evaluate checks the condition against stats and updates active/cleared
// bookkeeping plus cooldown-gated triggering, returning whether the
// handler should fire right now.
func (a *Alert) Evaluate(stats ConnectorStatsView, now time.Time) bool {
	fires := a.Condition != nil && a.Condition(stats)
	if !fires {
		a.active = false
		return false
	}
	withinCooldown := a.Cooldown > 0 && !a.lastTriggered.IsZero() && now.Sub(a.lastTriggered) < a.Cooldown
	a.active = true
	if withinCooldown {
		return false
	}
	a.lastTriggered = now
	return true
}
