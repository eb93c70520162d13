package health

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxpoynt/connector-framework/internal/health/model"
)

func TestMetricLogEvictsOldestBeyondCapacity(t *testing.T) {
	log := newMetricLog(2, nil)

	log.Record(model.Metric{Name: "m1", Value: 1})
	log.Record(model.Metric{Name: "m2", Value: 2})
	log.Record(model.Metric{Name: "m3", Value: 3})

	all := log.All()
	require.Len(t, all, 2)
	assert.Equal(t, "m2", all[0].Name)
	assert.Equal(t, "m3", all[1].Name)
}

func TestMetricLogSinceFiltersByTimestamp(t *testing.T) {
	log := newMetricLog(10, nil)
	base := time.Now()

	log.Record(model.Metric{Name: "old", Value: 1, Timestamp: base.Add(-2 * time.Minute)})
	log.Record(model.Metric{Name: "recent", Value: 2, Timestamp: base})

	recent := log.Since(base.Add(-time.Minute))
	require.Len(t, recent, 1)
	assert.Equal(t, "recent", recent[0].Name)
}

func TestMetricLogMirrorsIntoPrometheusCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	log := newMetricLog(10, reg)

	log.Record(model.Metric{Name: "connector_requests_total", Value: 1, Type: model.MetricCounter})
	log.Record(model.Metric{Name: "connector_requests_total", Value: 1, Type: model.MetricCounter})

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "connector_requests_total", families[0].GetName())
	assert.InDelta(t, 2.0, families[0].GetMetric()[0].GetCounter().GetValue(), 0.001)
}
