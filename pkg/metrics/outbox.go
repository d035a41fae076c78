package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics tracks delivery results of the outbox publisher.
type OutboxMetrics struct {
	deliveries *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_deliveries_total",
		Help:      "Outbox event deliveries by event type and result.",
	}, []string{"event_type", "result"})
	reg.MustRegister(deliveries)
	return &OutboxMetrics{deliveries: deliveries}
}

// Observe records one delivery attempt; result is published, failed or terminal.
func (m *OutboxMetrics) Observe(eventType, result string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}
