package health

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/taxpoynt/connector-framework/internal/health/model"
)

const defaultMetricCapacity = 10000

// metricLog is the bounded FIFO of recorded Metrics plus the Prometheus
// collectors each named metric is mirrored into. A collector is created
// and registered the first time a metric of its name is recorded.
type metricLog struct {
	mu       sync.Mutex
	capacity int
	entries  []model.Metric

	registerer prometheus.Registerer
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

func newMetricLog(capacity int, registerer prometheus.Registerer) *metricLog {
	if capacity <= 0 {
		capacity = defaultMetricCapacity
	}
	return &metricLog{
		capacity:   capacity,
		registerer: registerer,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// Record appends m to the FIFO (evicting the oldest entry once capacity
// is reached) and mirrors it into the matching Prometheus collector.
func (l *metricLog) Record(m model.Metric) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	l.entries = append(l.entries, m)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[len(l.entries)-l.capacity:]
	}

	l.mirror(m)
}

func (l *metricLog) labelNames(tags map[string]string) ([]string, prometheus.Labels) {
	names := make([]string, 0, len(tags))
	labels := make(prometheus.Labels, len(tags))
	for k, v := range tags {
		names = append(names, k)
		labels[k] = v
	}
	return names, labels
}

func (l *metricLog) mirror(m model.Metric) {
	if l.registerer == nil {
		return
	}
	names, labels := l.labelNames(m.Tags)

	switch m.Type {
	case model.MetricCounter:
		c, ok := l.counters[m.Name]
		if !ok {
			c = prometheus.NewCounterVec(prometheus.CounterOpts{Name: m.Name, Help: m.Name}, names)
			l.registerer.MustRegister(c)
			l.counters[m.Name] = c
		}
		c.With(labels).Add(m.Value)
	case model.MetricGauge, model.MetricTimer:
		g, ok := l.gauges[m.Name]
		if !ok {
			g = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: m.Name, Help: m.Name}, names)
			l.registerer.MustRegister(g)
			l.gauges[m.Name] = g
		}
		g.With(labels).Set(m.Value)
	case model.MetricHistogram:
		h, ok := l.histograms[m.Name]
		if !ok {
			h = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: m.Name, Help: m.Name}, names)
			l.registerer.MustRegister(h)
			l.histograms[m.Name] = h
		}
		h.With(labels).Observe(m.Value)
	}
}

// Since returns every recorded metric with Timestamp >= cutoff.
func (l *metricLog) Since(cutoff time.Time) []model.Metric {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]model.Metric, 0)
	for _, m := range l.entries {
		if !m.Timestamp.Before(cutoff) {
			out = append(out, m)
		}
	}
	return out
}

// All returns a copy of every metric currently retained.
func (l *metricLog) All() []model.Metric {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.Metric, len(l.entries))
	copy(out, l.entries)
	return out
}
