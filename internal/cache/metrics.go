package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "finance"

// Metrics counts cache traffic. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests      *prometheus.CounterVec
	errors        *prometheus.CounterVec
	invalidations *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg when reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "cache_requests_total",
				Help:      "Cache lookups by key namespace and result (hit, miss, bypass)",
			},
			[]string{"namespace", "result"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "cache_errors_total",
				Help:      "Cache store errors by operation",
			},
			[]string{"op"},
		),
		invalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "cache_invalidations_total",
				Help:      "Invalidation runs by scope",
			},
			[]string{"scope"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.requests, m.errors, m.invalidations)
	}
	return m
}

func (m *Metrics) hit(key string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(Namespace(key), "hit").Inc()
}

func (m *Metrics) miss(key string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(Namespace(key), "miss").Inc()
}

func (m *Metrics) bypass(key string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(Namespace(key), "bypass").Inc()
}

func (m *Metrics) storeError(op string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(op).Inc()
}

func (m *Metrics) invalidated(scope string) {
	if m == nil {
		return
	}
	m.invalidations.WithLabelValues(scope).Inc()
}
