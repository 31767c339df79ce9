package cart

import (
	"github.com/prometheus/client_golang/prometheus"

	"goflare.io/storefront/models/enum"
)

// Metrics counts ledger mutations and storage failures.
type Metrics struct {
	mutations *prometheus.CounterVec
	failures  *prometheus.CounterVec
}

// NewMetrics registers the cart metrics on reg. A nil registerer yields a
// no-op recorder.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "cart",
		Name:      "mutations_total",
		Help:      "Persisted cart mutations.",
	}, []string{"reason"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "cart",
		Name:      "storage_failures_total",
		Help:      "Cart storage failures by operation.",
	}, []string{"op"})
	reg.MustRegister(mutations, failures)
	return &Metrics{
		mutations: mutations,
		failures:  failures,
	}
}

func (m *Metrics) IncMutation(reason enum.ChangeReason) {
	if m == nil || m.mutations == nil {
		return
	}
	m.mutations.WithLabelValues(string(reason)).Inc()
}

func (m *Metrics) IncFailure(op string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(op).Inc()
}
