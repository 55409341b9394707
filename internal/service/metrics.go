package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts lifecycle outcomes. A nil *Metrics records nothing.
type Metrics struct {
	bookingsCreated   *prometheus.CounterVec
	otpValidations    *prometheus.CounterVec
	settlements       *prometheus.CounterVec
	transferDecisions *prometheus.CounterVec
	otpSwept          prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bookingsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_booking_create_total",
			Help: "Booking creation attempts by outcome category.",
		}, []string{"outcome"}),
		otpValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_otp_validation_total",
			Help: "OTP submissions by outcome category.",
		}, []string{"outcome"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_settlement_total",
			Help: "Payment settlement attempts by outcome category.",
		}, []string{"outcome"}),
		transferDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_transfer_transition_total",
			Help: "Transfer request transitions by resulting status.",
		}, []string{"status"}),
		otpSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fulfillment_otp_swept_total",
			Help: "Expired OTP challenges removed by the sweeper.",
		}),
	}
	reg.MustRegister(m.bookingsCreated, m.otpValidations, m.settlements, m.transferDecisions, m.otpSwept)
	return m
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if c := Category(err); c != "" {
		return c
	}
	return "error"
}

func (m *Metrics) bookingCreated(err error) {
	if m != nil {
		m.bookingsCreated.WithLabelValues(outcome(err)).Inc()
	}
}

func (m *Metrics) otpValidated(err error) {
	if m != nil {
		m.otpValidations.WithLabelValues(outcome(err)).Inc()
	}
}

func (m *Metrics) settled(err error) {
	if m != nil {
		m.settlements.WithLabelValues(outcome(err)).Inc()
	}
}

func (m *Metrics) transferTransition(status string) {
	if m != nil {
		m.transferDecisions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) swept(n int64) {
	if m != nil && n > 0 {
		m.otpSwept.Add(float64(n))
	}
}
