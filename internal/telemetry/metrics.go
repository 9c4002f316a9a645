package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes recorded for a registration submission.
const (
	OutcomeSuccess    = "success"
	OutcomeValidation = "validation"
	OutcomeNotFound   = "not_found"
	OutcomeDeclined   = "declined"
	OutcomeError      = "error"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry      *prometheus.Registry
	submissions   *prometheus.CounterVec
	amountCharged *prometheus.CounterVec
	notifications *prometheus.CounterVec
	submitLatency prometheus.Histogram
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "registration",
			Name:      "submissions_total",
			Help:      "Registration submissions by event and outcome.",
		}, []string{"event", "outcome"}),
		amountCharged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "registration",
			Name:      "charged_cents_total",
			Help:      "Amount successfully charged, in cents.",
		}, []string{"event"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "registration",
			Name:      "notifications_total",
			Help:      "Emails attempted by kind and result.",
		}, []string{"kind", "result"}),
		submitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "registration",
			Name:      "submit_duration_seconds",
			Help:      "End-to-end submission latency.",
			Buckets:   []float64{.1, .25, .5, 1, 2, 4, 8, 16},
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.submissions, m.amountCharged, m.notifications, m.submitLatency,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveSubmission(event, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(event, outcome).Inc()
	m.submitLatency.Observe(took.Seconds())
}

func (m *Metrics) AddCharged(event string, cents int64) {
	if m == nil {
		return
	}
	m.amountCharged.WithLabelValues(event).Add(float64(cents))
}

func (m *Metrics) ObserveNotification(kind string, err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.notifications.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) ObserveHTTP(method, route, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(took.Seconds())
}
