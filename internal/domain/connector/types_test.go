package connector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRecordAndStatus(t *testing.T) {
	m := &Metrics{}
	now := time.Now()

	for i := 0; i < 19; i++ {
		m.Record(now, true, 100)
	}
	m.Record(now, false, 500)

	assert.Equal(t, int64(20), m.TotalRequests)
	assert.InDelta(t, 95.0, m.SuccessRate()*100, 0.01)
	assert.Equal(t, StatusConnected, m.Status())
	assert.Equal(t, int64(500), m.PeakResponseTimeMS)
}

func TestMetricsStatusBuckets(t *testing.T) {
	m := &Metrics{}
	now := time.Now()
	for i := 0; i < 8; i++ {
		m.Record(now, true, 10)
	}
	for i := 0; i < 2; i++ {
		m.Record(now, false, 10)
	}
	assert.Equal(t, StatusAuthenticated, m.Status())

	m2 := &Metrics{}
	for i := 0; i < 5; i++ {
		m2.Record(now, false, 10)
	}
	for i := 0; i < 5; i++ {
		m2.Record(now, true, 10)
	}
	assert.Equal(t, StatusError, m2.Status())
}

func TestRequestsPerMinutePrunesOldTimestamps(t *testing.T) {
	m := &Metrics{}
	base := time.Now()
	m.Record(base.Add(-90*time.Second), true, 10)
	m.Record(base.Add(-30*time.Second), true, 10)
	m.Record(base, true, 10)

	assert.Equal(t, 2, m.RequestsPerMinute(base))
}

func TestConfigEndpointLookup(t *testing.T) {
	cfg := &Config{Endpoints: map[string]string{"list_invoices": "/invoices"}}

	path, ok := cfg.Endpoint("list_invoices")
	assert.True(t, ok)
	assert.Equal(t, "/invoices", path)

	_, ok = cfg.Endpoint("missing")
	assert.False(t, ok)
}
