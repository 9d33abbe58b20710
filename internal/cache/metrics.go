package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricCacheHits   = "ranking_cache_hits_total"
	MetricCacheMisses = "ranking_cache_misses_total"
)

// Metrics contains Prometheus metrics for the ranking result cache.
type Metrics struct {
	hits   prometheus.Counter
	misses prometheus.Counter
}

// NewMetrics creates a Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them.
func NewMetrics() *Metrics {
	return &Metrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCacheHits,
			Help: "Total number of ranking cache hits",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCacheMisses,
			Help: "Total number of ranking cache misses",
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncHit increments the hit counter.
func (m *Metrics) IncHit() { m.hits.Inc() }

// IncMiss increments the miss counter.
func (m *Metrics) IncMiss() { m.misses.Inc() }

// Collectors returns all Prometheus collectors for registration and tests.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.hits, m.misses}
}
