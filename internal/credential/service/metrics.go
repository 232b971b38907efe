package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the credential manager.
type Metrics struct {
	issuedTotal      prometheus.Counter
	verifiedTotal    *prometheus.CounterVec
	revokedTotal     prometheus.Counter
	transitionsTotal *prometheus.CounterVec
	verifyDurationMs prometheus.Histogram
	driftScore       prometheus.Histogram
}

// NewMetrics creates and registers the credential manager metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		issuedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fides_credentials_issued_total",
			Help: "Total credentials issued",
		}),
		verifiedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fides_access_verifications_total",
			Help: "Total access verifications by outcome",
		}, []string{"outcome"}),
		revokedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fides_credentials_revoked_total",
			Help: "Total credentials revoked",
		}),
		transitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fides_network_transitions_total",
			Help: "Total network transition requests by outcome",
		}, []string{"outcome"}),
		verifyDurationMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fides_access_verification_duration_ms",
			Help:    "Latency of access verification in milliseconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
		}),
		driftScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fides_signature_drift",
			Help:    "Observed signature drift scores",
			Buckets: []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1},
		}),
	}
}

func (m *Metrics) ObserveIssued() {
	if m != nil {
		m.issuedTotal.Inc()
	}
}

func (m *Metrics) ObserveVerification(allowed bool, drift float64, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	m.verifiedTotal.WithLabelValues(outcome).Inc()
	m.driftScore.Observe(drift)
	m.verifyDurationMs.Observe(float64(elapsed.Microseconds()) / 1000.0)
}

func (m *Metrics) ObserveRevoked() {
	if m != nil {
		m.revokedTotal.Inc()
	}
}

func (m *Metrics) ObserveTransition(approved bool) {
	if m == nil {
		return
	}
	outcome := "approved"
	if !approved {
		outcome = "denied"
	}
	m.transitionsTotal.WithLabelValues(outcome).Inc()
}
