package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "referral_ledger"

// Metrics groups the ledger's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registrations *prometheus.CounterVec
	pointsAwarded *prometheus.CounterVec
	claims        *prometheus.CounterVec
	poolRemaining *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Users registered, split by whether a referrer was credited.",
		}, []string{"referred"}),
		pointsAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_awarded_total",
			Help:      "Points credited to balances by source.",
		}, []string{"source"}),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_claims_total",
			Help:      "Pool claim attempts by outcome.",
		}, []string{"result"}),
		poolRemaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_remaining_points",
			Help:      "Remaining budget of each open pool at the last report.",
		}, []string{"pool"}),
	}
	reg.MustRegister(m.registrations, m.pointsAwarded, m.claims, m.poolRemaining)
	return m
}

func (m *Metrics) ObserveRegistration(referred bool) {
	if m == nil {
		return
	}
	label := "false"
	if referred {
		label = "true"
	}
	m.registrations.WithLabelValues(label).Inc()
}

func (m *Metrics) ObserveAward(source string, points int64) {
	if m == nil || points <= 0 {
		return
	}
	m.pointsAwarded.WithLabelValues(source).Add(float64(points))
}

func (m *Metrics) ObserveClaim(result string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(result).Inc()
}

func (m *Metrics) SetPoolRemaining(pool string, remaining int64) {
	if m == nil {
		return
	}
	m.poolRemaining.WithLabelValues(pool).Set(float64(remaining))
}

// ForgetPool drops the gauge of a pool that has closed.
func (m *Metrics) ForgetPool(pool string) {
	if m == nil {
		return
	}
	m.poolRemaining.DeleteLabelValues(pool)
}
