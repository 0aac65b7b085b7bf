// Package metrics holds the Prometheus instruments exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "flightops"

// Metrics holds all Prometheus metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestDuration *prometheus.HistogramVec
	FlightMutations     *prometheus.CounterVec
	PermissionDenied    *prometheus.CounterVec
	LoginAttempts       *prometheus.CounterVec
	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter
	AuditWriteFailures  prometheus.Counter
	SuspiciousInput     *prometheus.CounterVec
}

// New creates all metrics and registers them, plus Go runtime and process
// collectors, on the given registry.
func New(registry *prometheus.Registry) *Metrics {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		FlightMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flight_mutations_total",
			Help:      "Successful flight mutations by action",
		}, []string{"action"}),
		PermissionDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permission_denied_total",
			Help:      "Operations rejected by the access policy",
		}, []string{"operation"}),
		LoginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Telegram login attempts by result",
		}, []string{"result"}),
		NotificationsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Status-change notifications delivered",
		}),
		NotificationsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Status-change notifications that could not be delivered",
		}),
		AuditWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_write_failures_total",
			Help:      "Audit entries that could not be persisted",
		}),
		SuspiciousInput: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suspicious_input_total",
			Help:      "Free-text input flagged by injection detection, by field",
		}, []string{"field"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// FlightMutation counts a successful create/update/delete.
func (m *Metrics) FlightMutation(action string) {
	if m == nil {
		return
	}
	m.FlightMutations.WithLabelValues(action).Inc()
}

// Denied counts an operation rejected by the access policy.
func (m *Metrics) Denied(operation string) {
	if m == nil {
		return
	}
	m.PermissionDenied.WithLabelValues(operation).Inc()
}

// Login counts a login attempt by result.
func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}

// NotificationSent counts a delivered notification.
func (m *Metrics) NotificationSent() {
	if m == nil {
		return
	}
	m.NotificationsSent.Inc()
}

// NotificationFailed counts a failed notification.
func (m *Metrics) NotificationFailed() {
	if m == nil {
		return
	}
	m.NotificationsFailed.Inc()
}

// AuditWriteFailed counts an audit entry that was not persisted.
func (m *Metrics) AuditWriteFailed() {
	if m == nil {
		return
	}
	m.AuditWriteFailures.Inc()
}

// Suspicious counts flagged free-text input.
func (m *Metrics) Suspicious(field string) {
	if m == nil {
		return
	}
	m.SuspiciousInput.WithLabelValues(field).Inc()
}
