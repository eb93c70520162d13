package health

import (
	"sync"
	"time"

	"github.com/taxpoynt/connector-framework/internal/health/model"
)

// ConnectorStats accumulates a single connector's running totals, derives
// its current overall status, and gates external routing decisions
// through its own simpleBreaker.
type ConnectorStats struct {
	ConnectorID string

	mu sync.Mutex

	totalRequests   int64
	totalErrors     int64
	totalLatencyMS  int64
	uptimeStart     time.Time
	recentLatencies []latencySample
	breaker         *simpleBreaker
	status          model.Status
}

type latencySample struct {
	at time.Time
}

// NewConnectorStats starts a fresh stats tracker, uptime-stamped now.
func NewConnectorStats(connectorID string, failureThreshold int, recoveryTimeout time.Duration) *ConnectorStats {
	return &ConnectorStats{
		ConnectorID: connectorID,
		uptimeStart: time.Now(),
		breaker:     newSimpleBreaker(failureThreshold, recoveryTimeout),
		status:      model.StatusHealthy,
	}
}

// RecordCall folds one call's outcome into the running totals and the
// connector-level breaker.
func (s *ConnectorStats) RecordCall(now time.Time, success bool, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalRequests++
	s.totalLatencyMS += latency.Milliseconds()
	s.recentLatencies = append(s.recentLatencies, latencySample{at: now})
	s.pruneLocked(now)

	if success {
		s.breaker.RecordSuccess()
	} else {
		s.totalErrors++
		s.breaker.RecordFailure(now)
	}
}

func (s *ConnectorStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-60 * time.Second)
	i := 0
	for ; i < len(s.recentLatencies); i++ {
		if s.recentLatencies[i].at.After(cutoff) {
			break
		}
	}
	s.recentLatencies = s.recentLatencies[i:]
}

// Snapshot computes the read-only view of a connector's stats as of now.
func (s *ConnectorStats) Snapshot(now time.Time) ConnectorStatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(now)

	var avgLatency float64
	var errorRate float64
	if s.totalRequests > 0 {
		avgLatency = float64(s.totalLatencyMS) / float64(s.totalRequests)
		errorRate = float64(s.totalErrors) / float64(s.totalRequests) * 100
	}

	return ConnectorStatsSnapshot{
		ConnectorID:      s.ConnectorID,
		TotalRequests:    s.totalRequests,
		TotalErrors:      s.totalErrors,
		AvgResponseMS:    avgLatency,
		ErrorRatePercent: errorRate,
		ThroughputPerSec: float64(len(s.recentLatencies)) / 60.0,
		UptimeStart:      s.uptimeStart,
		Status:           s.status,
		Breaker:          s.breaker.Snapshot(),
	}
}

// SetStatus overrides the stats' reported overall status. The Monitor
// does not call it; the status stays Healthy until a caller sets it.
func (s *ConnectorStats) SetStatus(status model.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Allow reports whether the connector-level breaker currently permits
// routing a call to this connector.
func (s *ConnectorStats) Allow(now time.Time) bool {
	return s.breaker.Allow(now)
}

// ConnectorStatsSnapshot is the read-only export of ConnectorStats: a
// model.ConnectorStatsView plus the connector-level breaker's fields.
type ConnectorStatsSnapshot struct {
	ConnectorID      string
	TotalRequests    int64
	TotalErrors      int64
	AvgResponseMS    float64
	ErrorRatePercent float64
	ThroughputPerSec float64
	UptimeStart      time.Time
	Status           model.Status
	Breaker          BreakerSnapshot
}

// View projects the snapshot down to the plain model.ConnectorStatsView
// shape that Alert conditions are evaluated against.
func (c ConnectorStatsSnapshot) View() model.ConnectorStatsView {
	return model.ConnectorStatsView{
		ConnectorID:      c.ConnectorID,
		TotalRequests:    c.TotalRequests,
		TotalErrors:      c.TotalErrors,
		AvgResponseMS:    c.AvgResponseMS,
		ErrorRatePercent: c.ErrorRatePercent,
		ThroughputPerSec: c.ThroughputPerSec,
		UptimeStart:      c.UptimeStart,
		Status:           c.Status,
	}
}
