package jobs

import "github.com/prometheus/client_golang/prometheus"

// Cycle status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics holds Prometheus metrics for background jobs.
type Metrics struct {
	cyclesTotal         *prometheus.CounterVec
	cycleDuration       prometheus.Histogram
	errorsTotal         *prometheus.CounterVec
	lastCycleScopeCount prometheus.Gauge
}

// NewMetrics creates job metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		cyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ranking_recompute_cycles_total",
				Help: "Total number of ranking recompute cycles by status",
			},
			[]string{"status"},
		),
		cycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ranking_recompute_cycle_duration_seconds",
				Help:    "Duration of ranking recompute cycles in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ranking_recompute_errors_total",
				Help: "Total number of ranking recompute errors by type",
			},
			[]string{"error_type"},
		),
		lastCycleScopeCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ranking_recompute_last_cycle_scopes",
				Help: "Number of scopes recomputed in the most recent cycle",
			},
		),
	}
}

// Register registers all job metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all metric collectors for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.cyclesTotal,
		m.cycleDuration,
		m.errorsTotal,
		m.lastCycleScopeCount,
	}
}

// IncCycles increments the cycle counter for the given status.
func (m *Metrics) IncCycles(status string) {
	m.cyclesTotal.WithLabelValues(status).Inc()
}

// ObserveCycleDuration records how long a recompute cycle took.
func (m *Metrics) ObserveCycleDuration(seconds float64) {
	m.cycleDuration.Observe(seconds)
}

// IncErrors increments the error counter for the given error type.
func (m *Metrics) IncErrors(errorType string) {
	m.errorsTotal.WithLabelValues(errorType).Inc()
}

// SetLastCycleScopeCount records the scope count of the last cycle.
func (m *Metrics) SetLastCycleScopeCount(count float64) {
	m.lastCycleScopeCount.Set(count)
}
