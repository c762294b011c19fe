package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RejectedTotal *prometheus.CounterVec
	DegradedTotal prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kycgate_ratelimit_rejected_total",
			Help: "Requests rejected by the rate limiter",
		}, []string{"scope"}),
		DegradedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "kycgate_ratelimit_degraded_total",
			Help: "Times the limiter switched to its local fallback store",
		}),
	}
}

func (m *Metrics) IncRejected(scope string) {
	if m == nil {
		return
	}
	m.RejectedTotal.WithLabelValues(scope).Inc()
}

func (m *Metrics) IncDegraded() {
	if m == nil {
		return
	}
	m.DegradedTotal.Inc()
}
