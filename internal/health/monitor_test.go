package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxpoynt/connector-framework/internal/health/model"
)

func testMonitor() *Monitor {
	cfg := DefaultConfig()
	cfg.Registerer = nil
	return NewMonitor(cfg, nil)
}

func TestRegisterCheckRejectsMissingNameOrInterval(t *testing.T) {
	m := testMonitor()

	err := m.RegisterCheck(&model.HealthCheck{Interval: time.Second})
	assert.Error(t, err)

	err = m.RegisterCheck(&model.HealthCheck{Name: "db"})
	assert.Error(t, err)
}

func TestRunCheckUpdatesHealthCheckState(t *testing.T) {
	m := testMonitor()
	hc := &model.HealthCheck{
		Name:     "upstream-api",
		Interval: time.Minute,
		Critical: true,
		Check:    func(ctx context.Context) error { return errors.New("unreachable") },
	}
	require.NoError(t, m.RegisterCheck(hc))

	m.runCheck(hc)
	assert.Equal(t, model.StatusUnhealthy, hc.LastStatus())
	assert.Equal(t, 1, hc.ConsecutiveFailures())
	assert.Equal(t, model.StatusUnhealthy, m.Overall())
}

func TestOverallIsHealthyWhenNoChecksHaveFailed(t *testing.T) {
	m := testMonitor()
	hc := &model.HealthCheck{
		Name:     "ok-check",
		Interval: time.Minute,
		Check:    func(ctx context.Context) error { return nil },
	}
	require.NoError(t, m.RegisterCheck(hc))
	m.runCheck(hc)

	assert.Equal(t, model.StatusHealthy, m.Overall())
}

func TestOverallDegradesOnNonCriticalFailure(t *testing.T) {
	m := testMonitor()
	hc := &model.HealthCheck{
		Name:     "non-critical",
		Interval: time.Minute,
		Critical: false,
		Check:    func(ctx context.Context) error { return errors.New("flaky") },
	}
	require.NoError(t, m.RegisterCheck(hc))
	m.runCheck(hc)

	assert.Equal(t, model.StatusDegraded, m.Overall())
}

func TestEvaluateAlertsFiresHandlerOnceThenRespectsCooldown(t *testing.T) {
	m := testMonitor()
	stats := m.ConnectorStats("conn-1")
	now := time.Now()
	stats.RecordCall(now, false, time.Millisecond)
	stats.RecordCall(now, false, time.Millisecond)
	stats.RecordCall(now, false, time.Millisecond)
	stats.RecordCall(now, true, time.Millisecond)

	fired := 0
	alert := &model.Alert{
		Name:     "elevated-errors",
		Cooldown: time.Hour,
		Condition: func(s model.ConnectorStatsView) bool {
			return s.ErrorRatePercent > 50
		},
		Handler: func(a *model.Alert, s model.ConnectorStatsView) { fired++ },
	}
	m.RegisterAlert(alert)

	m.evaluateAlerts()
	m.evaluateAlerts()

	assert.Equal(t, 1, fired)
	assert.True(t, alert.Active())
}

func TestRecordMetricAndMetricsSince(t *testing.T) {
	m := testMonitor()
	m.RecordMetric(model.Metric{Name: "latency_ms", Value: 42, Type: model.MetricGauge})

	recent := m.MetricsSince(time.Now().Add(-time.Minute))
	require.Len(t, recent, 1)
	assert.Equal(t, "latency_ms", recent[0].Name)
}
