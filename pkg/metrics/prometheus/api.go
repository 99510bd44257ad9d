package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/filegate/pkg/metrics"
)

// apiMetrics is the Prometheus implementation of metrics.APIMetrics.
type apiMetrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec
	grantsIssued     *prometheus.CounterVec
	commitsTotal     *prometheus.CounterVec
}

// NewAPIMetrics creates a new Prometheus-backed APIMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry
// not called).
func NewAPIMetrics() metrics.APIMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopAPIMetrics()
	}

	reg := metrics.GetRegistry()

	return &apiMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filegate_http_requests_total",
				Help: "Total number of HTTP requests by route, method, and status",
			},
			[]string{"route", "method", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "filegate_http_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
				Buckets: []float64{
					0.005, // 5ms
					0.01,  // 10ms
					0.025, // 25ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.25,  // 250ms
					0.5,   // 500ms
					1.0,   // 1s
					2.5,   // 2.5s
					5.0,   // 5s
					10.0,  // 10s
				},
			},
			[]string{"route"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "filegate_http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
			[]string{"route"},
		),
		grantsIssued: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filegate_grants_issued_total",
				Help: "Total number of signed-access grants issued by mode and intent",
			},
			[]string{"mode", "intent"},
		),
		commitsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filegate_commits_total",
				Help: "Total number of commit items by outcome",
			},
			[]string{"outcome"},
		),
	}
}

func (m *apiMetrics) RecordRequest(route, method string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func (m *apiMetrics) RecordRequestStart(route string) {
	m.requestsInFlight.WithLabelValues(route).Inc()
}

func (m *apiMetrics) RecordRequestEnd(route string) {
	m.requestsInFlight.WithLabelValues(route).Dec()
}

func (m *apiMetrics) RecordGrant(mode, intent string) {
	m.grantsIssued.WithLabelValues(mode, intent).Inc()
}

func (m *apiMetrics) RecordCommit(outcome string) {
	m.commitsTotal.WithLabelValues(outcome).Inc()
}
