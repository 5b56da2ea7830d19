package reasoning

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds provider latency and failure instruments.
type Metrics struct {
	// Latency observes completion latency.
	// Labels: provider, tool
	Latency *prometheus.HistogramVec

	// Failures counts failed completions.
	// Labels: provider, tool, reason (error, timeout, circuit_open, rate_limited)
	Failures *prometheus.CounterVec
}

// NewMetrics registers the instruments on reg. A nil reg creates unregistered
// instruments.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "third_eye",
				Subsystem: "provider",
				Name:      "latency_seconds",
				Help:      "Latency of reasoning backend completions in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"provider", "tool"},
		),
		Failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "third_eye",
				Subsystem: "provider",
				Name:      "failures_total",
				Help:      "Total number of failed reasoning backend completions",
			},
			[]string{"provider", "tool", "reason"},
		),
	}
}

func (m *Metrics) observe(provider, tool string, d time.Duration) {
	if m == nil {
		return
	}
	m.Latency.WithLabelValues(provider, tool).Observe(d.Seconds())
}

func (m *Metrics) fail(provider, tool, reason string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(provider, tool, reason).Inc()
}
