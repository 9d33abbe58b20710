package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricRankTotal          = "ranking_evaluations_total"
	MetricRankDuration       = "ranking_evaluation_duration_seconds"
	MetricRankEntries        = "ranking_result_entries"
	MetricRankIrregularities = "ranking_irregularities_total"
	MetricRankUnknownScope   = "ranking_unknown_scope_total"
)

// Metrics contains Prometheus metrics for ranking evaluations.
// All operations are thread-safe.
type Metrics struct {
	rankTotal      prometheus.Counter
	rankDuration   prometheus.Histogram
	rankEntries    prometheus.Histogram
	irregularities *prometheus.CounterVec
	unknownScope   prometheus.Counter
}

// NewMetrics creates a Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them.
func NewMetrics() *Metrics {
	return &Metrics{
		rankTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRankTotal,
			Help: "Total number of ranking evaluations",
		}),
		rankDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRankDuration,
			Help:    "Histogram of ranking evaluation duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),
		rankEntries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRankEntries,
			Help:    "Histogram of ordered entry counts per ranking evaluation",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		irregularities: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRankIrregularities,
				Help: "Total number of non-fatal ranking irregularities by kind",
			},
			[]string{"kind"},
		),
		unknownScope: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRankUnknownScope,
			Help: "Total number of ranking requests aborted for an unknown scope",
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

// ObserveRank records one completed ranking evaluation.
func (m *Metrics) ObserveRank(seconds float64, entries int) {
	m.rankTotal.Inc()
	m.rankDuration.Observe(seconds)
	m.rankEntries.Observe(float64(entries))
}

// IncIrregularity increments the irregularity counter for a kind.
func (m *Metrics) IncIrregularity(kind AuditKind) {
	m.irregularities.WithLabelValues(string(kind)).Inc()
}

// IncUnknownScope increments the unknown-scope abort counter.
func (m *Metrics) IncUnknownScope() {
	m.unknownScope.Inc()
}

// Collectors returns all Prometheus collectors for registration and tests.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.rankTotal,
		m.rankDuration,
		m.rankEntries,
		m.irregularities,
		m.unknownScope,
	}
}
