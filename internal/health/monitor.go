package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/taxpoynt/connector-framework/internal/health/model"
)

// Config tunes a Monitor's defaults.
type Config struct {
	MetricCapacity          int
	DefaultFailureThreshold int
	DefaultRecoveryTimeout  time.Duration
	Registerer              prometheus.Registerer
}

// DefaultConfig mirrors the spec's stated default FIFO capacity of 10000.
func DefaultConfig() Config {
	return Config{
		MetricCapacity:          defaultMetricCapacity,
		DefaultFailureThreshold: 5,
		DefaultRecoveryTimeout:  30 * time.Second,
		Registerer:              prometheus.DefaultRegisterer,
	}
}

// Monitor runs scheduled health checks, tracks per-connector stats,
// evaluates alerts, and retains a bounded metrics log. It is the
// standalone gate described in §4.7, independent of a connector's own
// in-band health snapshot.
type Monitor struct {
	cfg Config
	log logrus.FieldLogger

	mu     sync.RWMutex
	checks map[string]*model.HealthCheck
	stats  map[string]*ConnectorStats
	alerts []*model.Alert

	metrics *metricLog

	cron    *cron.Cron
	entries map[string]cron.EntryID
}

// NewMonitor builds an idle Monitor; call Start to begin scheduling.
func NewMonitor(cfg Config, log logrus.FieldLogger) *Monitor {
	if log == nil {
		log = logrus.New()
	}
	return &Monitor{
		cfg:     cfg,
		log:     log,
		checks:  make(map[string]*model.HealthCheck),
		stats:   make(map[string]*ConnectorStats),
		metrics: newMetricLog(cfg.MetricCapacity, cfg.Registerer),
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
	}
}

// RegisterCheck adds a HealthCheck and schedules it on the cron runner at
// its configured interval.
func (m *Monitor) RegisterCheck(hc *model.HealthCheck) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hc.Name == "" {
		return fmt.Errorf("health check name is required")
	}
	if hc.Interval <= 0 {
		return fmt.Errorf("health check %q: interval must be positive", hc.Name)
	}
	m.checks[hc.Name] = hc

	spec := fmt.Sprintf("@every %s", hc.Interval)
	id, err := m.cron.AddFunc(spec, func() { m.runCheck(hc) })
	if err != nil {
		return fmt.Errorf("scheduling check %q: %w", hc.Name, err)
	}
	m.entries[hc.Name] = id
	return nil
}

// RegisterAlert adds an Alert, evaluated on every scheduler tick in
// registration order relative to other alerts.
func (m *Monitor) RegisterAlert(a *model.Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, a)
}

// ConnectorStats returns (creating if absent) the stats tracker for a
// connector ID.
func (m *Monitor) ConnectorStats(connectorID string) *ConnectorStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stats[connectorID]; ok {
		return s
	}
	s := NewConnectorStats(connectorID, m.cfg.DefaultFailureThreshold, m.cfg.DefaultRecoveryTimeout)
	m.stats[connectorID] = s
	return s
}

// RecordMetric appends one Metric to the bounded log.
func (m *Monitor) RecordMetric(metric model.Metric) {
	m.metrics.Record(metric)
}

// MetricsSince returns every retained metric recorded at or after cutoff.
func (m *Monitor) MetricsSince(cutoff time.Time) []model.Metric {
	return m.metrics.Since(cutoff)
}

// Start launches the cron scheduler. It also adds a tick job that
// evaluates every registered alert once per second.
func (m *Monitor) Start() {
	m.mu.Lock()
	m.cron.AddFunc("@every 1s", m.evaluateAlerts)
	m.mu.Unlock()
	m.cron.Start()
}

// Stop halts the scheduler without waiting; the returned context is done
// once any in-flight check has finished.
func (m *Monitor) Stop() context.Context {
	return m.cron.Stop()
}

func (m *Monitor) runCheck(hc *model.HealthCheck) {
	ctx := context.Background()
	if hc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, hc.Timeout)
		defer cancel()
	}

	err := hc.Check(ctx)

	m.mu.Lock()
	hc.RecordRun(time.Now(), err)
	m.mu.Unlock()

	if err != nil {
		m.log.WithError(err).WithField("check", hc.Name).Warn("health check failed")
	}
}

func (m *Monitor) evaluateAlerts() {
	m.mu.RLock()
	alerts := append([]*model.Alert(nil), m.alerts...)
	snapshots := make([]ConnectorStatsSnapshot, 0, len(m.stats))
	now := time.Now()
	for _, s := range m.stats {
		snapshots = append(snapshots, s.Snapshot(now))
	}
	m.mu.RUnlock()

	for _, alert := range alerts {
		for _, snap := range snapshots {
			m.evaluateOneAlert(alert, snap, now)
		}
	}
}

func (m *Monitor) evaluateOneAlert(alert *model.Alert, snap ConnectorStatsSnapshot, now time.Time) {
	m.mu.Lock()
	wasActive := alert.Active()
	shouldTrigger := alert.Evaluate(snap.View(), now)
	if !alert.Active() && wasActive {
		m.log.WithField("alert", alert.Name).Info("alert cleared")
	}
	handler := alert.Handler
	m.mu.Unlock()

	if shouldTrigger && handler != nil {
		handler(alert, snap.View())
	}
}

// Overall derives the monitor-wide status: Unhealthy if any critical
// check is Unhealthy, else Degraded if any check is Unhealthy or
// Degraded, else Healthy.
func (m *Monitor) Overall() model.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	degraded := false
	for _, hc := range m.checks {
		if hc.LastStatus() == model.StatusUnhealthy && hc.Critical {
			return model.StatusUnhealthy
		}
		if hc.LastStatus() == model.StatusUnhealthy || hc.LastStatus() == model.StatusDegraded {
			degraded = true
		}
	}
	if degraded {
		return model.StatusDegraded
	}
	return model.StatusHealthy
}

// Check returns a registered HealthCheck by name.
func (m *Monitor) Check(name string) (*model.HealthCheck, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hc, ok := m.checks[name]
	return hc, ok
}
