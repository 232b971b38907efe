// Package metrics registers the process-wide Prometheus metrics. Domain
// packages register their own collectors; this holds the HTTP surface and
// node identity metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP-level Prometheus metrics.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	nodeInfo        *prometheus.GaugeVec
}

// New creates and registers all HTTP-level metrics.
func New() *Metrics {
	return &Metrics{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fides_http_requests_total",
			Help: "HTTP requests by route, method, and status class.",
		}, []string{"route", "method", "status"}),
		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fides_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		nodeInfo: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fides_node_info",
			Help: "Static node identity labels, always 1.",
		}, []string{"issuer_id"}),
	}
}

// SetNodeInfo records the node identity labels.
func (m *Metrics) SetNodeInfo(issuerID string) {
	m.nodeInfo.WithLabelValues(issuerID).Set(1)
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
