package runner

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts firings and terminations.
type Metrics struct {
	executions   *prometheus.CounterVec
	terminations *prometheus.CounterVec
	payload      prometheus.Histogram
}

// NewMetrics creates and registers the runner metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chime",
			Name:      "executions_total",
			Help:      "Recorded executions by job reference and status.",
		}, []string{"job", "status"}),
		terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chime",
			Name:      "terminations_total",
			Help:      "Definitions retired by the lifecycle policy, by reason.",
		}, []string{"reason"}),
		payload: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chime",
			Name:      "payload_duration_seconds",
			Help:      "Outbound payload delivery latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.executions, m.terminations, m.payload)
	}
	return m
}

func (m *Metrics) recordExecution(job, status string) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(job, status).Inc()
}

func (m *Metrics) recordTermination(reason string) {
	if m == nil {
		return
	}
	m.terminations.WithLabelValues(reason).Inc()
}

func (m *Metrics) observePayload(seconds float64) {
	if m == nil {
		return
	}
	m.payload.Observe(seconds)
}
