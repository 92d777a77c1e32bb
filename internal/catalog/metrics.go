package catalog

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ClientMetrics instruments catalog client calls. A nil *ClientMetrics
// records nothing.
type ClientMetrics struct {
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
}

func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	m := &ClientMetrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_client_requests_total",
				Help: "Catalog API requests by operation and result",
			},
			[]string{"op", "result"},
		),
		Latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "catalog_client_request_duration_seconds",
				Help: "Catalog API latency",
			},
			[]string{"op"},
		),
	}

	reg.MustRegister(m.Requests, m.Latency)
	return m
}

func (m *ClientMetrics) observeResult(op, result string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(op, result).Inc()
}

func (m *ClientMetrics) observeDuration(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.Latency.WithLabelValues(op).Observe(d.Seconds())
}
