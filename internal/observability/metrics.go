package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the gate's prometheus collectors.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	guardDecisions  *prometheus.CounterVec
	renewals        *prometheus.CounterVec
	logouts         *prometheus.CounterVec
}

// NewMetrics registers collectors on reg.
func NewMetrics(reg prometheus.Registerer, app string) *Metrics {
	constLabels := prometheus.Labels{"app": app}
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "session_gate",
			Name:        "http_requests_total",
			Help:        "HTTP requests served.",
			ConstLabels: constLabels,
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "session_gate",
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "session_gate",
			Name:        "http_errors_total",
			Help:        "HTTP errors by code.",
			ConstLabels: constLabels,
		}, []string{"path", "method", "code"}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "session_gate",
			Name:        "guard_decisions_total",
			Help:        "Session guard outcomes.",
			ConstLabels: constLabels,
		}, []string{"status"}),
		renewals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "session_gate",
			Name:        "renewals_total",
			Help:        "Credential renewal attempts by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "session_gate",
			Name:        "logouts_total",
			Help:        "Logouts by scope.",
			ConstLabels: constLabels,
		}, []string{"scope"}),
	}
	reg.MustRegister(m.requests, m.requestDuration, m.errors, m.guardDecisions, m.renewals, m.logouts)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordGuardDecision counts a terminal guard status.
func (m *Metrics) RecordGuardDecision(status string) {
	if m == nil {
		return
	}
	m.guardDecisions.WithLabelValues(status).Inc()
}

// RecordRenewal counts a renewal outcome.
func (m *Metrics) RecordRenewal(outcome string) {
	if m == nil {
		return
	}
	m.renewals.WithLabelValues(outcome).Inc()
}

// RecordLogout counts a logout.
func (m *Metrics) RecordLogout(scope string) {
	if m == nil {
		return
	}
	m.logouts.WithLabelValues(scope).Inc()
}
