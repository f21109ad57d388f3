package observability

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests          *prometheus.CounterVec
	requestLatency    *prometheus.HistogramVec
	errors            *prometheus.CounterVec
	conflictsDetected *prometheus.CounterVec
	resolutions       *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	cascadeCases      *prometheus.CounterVec
	batchUnits        *prometheus.CounterVec
	unitErrors        *prometheus.CounterVec
}

// NewMetrics registers collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roster_http_requests_total",
			Help: "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "roster_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roster_http_errors_total",
			Help: "HTTP errors by route, method and error code",
		}, []string{"route", "method", "code"}),
		conflictsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roster_conflicts_detected_total",
			Help: "Staff role conflicts detected, by severity",
		}, []string{"severity"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roster_conflict_resolutions_total",
			Help: "Conflict resolution attempts by outcome and mode",
		}, []string{"outcome", "mode"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roster_role_transitions_total",
			Help: "Classified staff role transitions",
		}, []string{"type"}),
		cascadeCases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roster_cascade_cases_total",
			Help: "Cases repaired by the cascade, by kind",
		}, []string{"kind"}),
		batchUnits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roster_batch_units_total",
			Help: "Units processed by batch operations",
		}, []string{"operation"}),
		unitErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roster_unit_errors_total",
			Help: "Isolated per-unit failures, by operation",
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.requests, m.requestLatency, m.errors,
			m.conflictsDetected, m.resolutions, m.transitions,
			m.cascadeCases, m.batchUnits, m.unitErrors,
		)
	}
	return m
}

// Handler serves the gatherer's metrics in the Prometheus text format.
func Handler(g prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// ConflictDetected counts a detected conflict.
func (m *Metrics) ConflictDetected(severity string) {
	if m == nil {
		return
	}
	m.conflictsDetected.WithLabelValues(severity).Inc()
}

// ConflictResolution counts a resolution attempt.
func (m *Metrics) ConflictResolution(resolved, manual bool) {
	if m == nil {
		return
	}
	outcome, mode := "failed", "automatic"
	if resolved {
		outcome = "resolved"
	}
	if manual {
		mode = "manual"
	}
	m.resolutions.WithLabelValues(outcome, mode).Inc()
}

// RoleTransition counts a classified transition.
func (m *Metrics) RoleTransition(changeType string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(changeType).Inc()
}

// CascadeCases adds n repaired cases of the given kind.
func (m *Metrics) CascadeCases(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cascadeCases.WithLabelValues(kind).Add(float64(n))
}

// BatchUnit counts one processed unit of a batch operation.
func (m *Metrics) BatchUnit(operation string) {
	if m == nil {
		return
	}
	m.batchUnits.WithLabelValues(operation).Inc()
}

// UnitError counts one isolated per-unit failure.
func (m *Metrics) UnitError(operation string) {
	if m == nil {
		return
	}
	m.unitErrors.WithLabelValues(operation).Inc()
}
