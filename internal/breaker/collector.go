package breaker

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "third_eye"

// Collector exports registry breakers as Prometheus metrics.
type Collector struct {
	registry *Registry

	state     *prometheus.Desc
	requests  *prometheus.Desc
	failures  *prometheus.Desc
	successes *prometheus.Desc
	halfOpen  *prometheus.Desc
}

// NewCollector returns a collector over r. Register it with a prometheus.Registerer.
func NewCollector(r *Registry) *Collector {
	labels := []string{"breaker"}
	return &Collector{
		registry: r,
		state: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "breaker", "state"),
			"Current breaker state (1 for the active state).",
			[]string{"breaker", "state"}, nil,
		),
		requests: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "breaker", "requests_total"),
			"Calls offered to the breaker, including rejections.",
			labels, nil,
		),
		failures: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "breaker", "failures_total"),
			"Protected calls that failed or timed out.",
			labels, nil,
		),
		successes: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "breaker", "successes_total"),
			"Protected calls that succeeded.",
			labels, nil,
		),
		halfOpen: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "breaker", "half_open_requests"),
			"Probe calls in flight while half-open.",
			labels, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.state
	ch <- c.requests
	ch <- c.failures
	ch <- c.successes
	ch <- c.halfOpen
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.registry.Statuses() {
		for _, st := range []State{StateClosed, StateOpen, StateHalfOpen} {
			v := 0.0
			if s.State == st {
				v = 1
			}
			ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, v, s.Name, string(st))
		}
		ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(s.Metrics.TotalRequests), s.Name)
		ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(s.Metrics.TotalFailures), s.Name)
		ch <- prometheus.MustNewConstMetric(c.successes, prometheus.CounterValue, float64(s.Metrics.TotalSuccesses), s.Name)
		ch <- prometheus.MustNewConstMetric(c.halfOpen, prometheus.GaugeValue, float64(s.HalfOpenRequests), s.Name)
	}
}

// TransitionCounter counts state changes by breaker and direction. Pass its
// Observe method to WithStateObserver.
type TransitionCounter struct {
	transitions *prometheus.CounterVec
}

// NewTransitionCounter registers the counter on reg. A nil reg leaves it
// unregistered.
func NewTransitionCounter(reg prometheus.Registerer) *TransitionCounter {
	c := &TransitionCounter{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "breaker",
			Name:      "transitions_total",
			Help:      "Breaker state changes.",
		}, []string{"breaker", "from", "to"}),
	}
	if reg != nil {
		reg.MustRegister(c.transitions)
	}
	return c
}

// Observe implements StateObserver.
func (c *TransitionCounter) Observe(name string, from, to State) {
	c.transitions.WithLabelValues(name, string(from), string(to)).Inc()
}
