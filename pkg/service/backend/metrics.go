package backend

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for backend calls.
//
// Metrics:
//   - prreminder_backend_requests_total{op,code} - backend calls by outcome; code is "network" when no response arrived
//   - prreminder_backend_request_duration_seconds{op} - backend call latency
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics registers the backend metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prreminder_backend_requests_total",
				Help: "Total number of PR Reminder backend requests",
			},
			[]string{"op", "code"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "prreminder_backend_request_duration_seconds",
				Help:    "Duration of PR Reminder backend requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}
}

func (m *Metrics) observe(op, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(op, code).Inc()
	m.RequestDuration.WithLabelValues(op).Observe(d.Seconds())
}
