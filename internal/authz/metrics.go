package authz

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts authorization outcomes. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	decisions *prometheus.CounterVec
	batchSize prometheus.Histogram
}

// NewMetrics registers the authz metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Authorization decisions by outcome.",
		}, []string{"outcome"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "authz_batch_check_size",
			Help:    "Number of checks per batch request.",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		}),
	}
	reg.MustRegister(m.decisions, m.batchSize)
	return m
}

// ObserveDecision records one allow/deny outcome.
func (m *Metrics) ObserveDecision(allowed bool) {
	if m == nil {
		return
	}
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	m.decisions.WithLabelValues(outcome).Inc()
}

// ObserveBatchSize records the size of one batch request.
func (m *Metrics) ObserveBatchSize(n int) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(n))
}
