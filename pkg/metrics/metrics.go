package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmehra2102/charge-ledger/internal/charge/domain"
)

type ChargeMetrics struct {
	transitions *prometheus.CounterVec
	webhooks    *prometheus.CounterVec
}

func NewChargeMetrics(reg prometheus.Registerer) *ChargeMetrics {
	m := &ChargeMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "charge",
			Name:      "transitions_total",
			Help:      "Charge ledger operations by operation and status change.",
		}, []string{"operation", "from", "to"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "charge",
			Name:      "gateway_events_total",
			Help:      "Gateway events consumed by type and outcome.",
		}, []string{"type", "outcome"}),
	}
	reg.MustRegister(m.transitions, m.webhooks)
	return m
}

func (m *ChargeMetrics) Transition(operation string, from, to domain.ChargeStatus) {
	m.transitions.WithLabelValues(operation, from.String(), to.String()).Inc()
}

func (m *ChargeMetrics) GatewayEvent(eventType, outcome string) {
	m.webhooks.WithLabelValues(eventType, outcome).Inc()
}
