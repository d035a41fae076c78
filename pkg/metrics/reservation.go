package metrics

import "github.com/prometheus/client_golang/prometheus"

// Reservation outcomes.
const (
	ReservationReserved     = "reserved"
	ReservationReleased     = "released"
	ReservationOutOfStock   = "out_of_stock"
	ReservationInsufficient = "insufficient"
	ReservationDemoBypass   = "demo_bypass"
	ReservationError        = "error"
)

// ReservationMetrics counts reservation attempts and purged holds.
type ReservationMetrics struct {
	outcomes *prometheus.CounterVec
	purged   prometheus.Counter
}

func NewReservationMetrics(reg prometheus.Registerer) *ReservationMetrics {
	if reg == nil {
		return &ReservationMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reservation_outcomes_total",
		Help:      "Stock reservation attempts by outcome.",
	}, []string{"outcome"})
	purged := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reservation_purged_total",
		Help:      "Expired reservations removed by the sweep job.",
	})
	reg.MustRegister(outcomes, purged)
	return &ReservationMetrics{outcomes: outcomes, purged: purged}
}

func (m *ReservationMetrics) Observe(outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *ReservationMetrics) AddPurged(n int64) {
	if m == nil || m.purged == nil || n <= 0 {
		return
	}
	m.purged.Add(float64(n))
}
