package law

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the enforcement engine.
type Metrics struct {
	checksTotal     *prometheus.CounterVec
	violationsTotal *prometheus.CounterVec
	skippedTotal    prometheus.Counter
}

// NewMetrics creates and registers the enforcement engine metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		checksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fides_law_checks_total",
			Help: "Total law enforcement checks by outcome",
		}, []string{"outcome"}),
		violationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fides_law_violations_total",
			Help: "Total law violations by law id",
		}, []string{"law_id"}),
		skippedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fides_law_unknown_ids_skipped_total",
			Help: "Total unknown law ids skipped during checks",
		}),
	}
}

// ObserveCheck records one enforcement check result.
func (m *Metrics) ObserveCheck(result Result) {
	outcome := "compliant"
	if !result.Compliant {
		outcome = "denied"
	}
	m.checksTotal.WithLabelValues(outcome).Inc()
	for _, v := range result.Violations {
		m.violationsTotal.WithLabelValues(strconv.Itoa(v.LawID)).Inc()
	}
	m.skippedTotal.Add(float64(len(result.Skipped)))
}
