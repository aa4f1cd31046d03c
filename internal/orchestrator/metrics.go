package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var histogramBuckets = []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Metrics records run outcomes.
type Metrics struct {
	branches   *prometheus.CounterVec
	containers *prometheus.CounterVec
	duration   prometheus.Histogram
}

// NewMetrics registers the collectors on reg, reusing any already registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		branches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "branchenv",
			Subsystem: "apply",
			Name:      "branches_total",
			Help:      "Branch environments processed, by outcome",
		}, []string{"outcome"}),
		containers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "branchenv",
			Subsystem: "apply",
			Name:      "containers_total",
			Help:      "Container apply actions, by action",
		}, []string{"action"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "branchenv",
			Subsystem: "apply",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full apply run",
			Buckets:   histogramBuckets,
		}),
	}
	if reg == nil {
		return m
	}
	collectors := []prometheus.Collector{m.branches, m.containers, m.duration}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				switch existing := already.ExistingCollector.(type) {
				case *prometheus.CounterVec:
					if collector == m.branches {
						m.branches = existing
					} else {
						m.containers = existing
					}
				case prometheus.Histogram:
					m.duration = existing
				}
			}
		}
	}
	return m
}

func (m *Metrics) recordBranch(outcome string) {
	if m == nil {
		return
	}
	m.branches.With(prometheus.Labels{"outcome": outcome}).Inc()
}

func (m *Metrics) recordContainer(action string) {
	if m == nil {
		return
	}
	m.containers.With(prometheus.Labels{"action": action}).Inc()
}

func (m *Metrics) observeRun(d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}
