// Package metrics exposes Prometheus instrumentation for scheduling operations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tufline"

// Manager owns a private registry so several engines (tests, embedded servers)
// never collide on registration.
type Manager struct {
	registry *prometheus.Registry

	operations      *prometheus.CounterVec
	resolveDuration prometheus.Histogram
	activePatterns  *prometheus.GaugeVec
	associations    *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
}

// New builds a Manager with all collectors registered.
func New() *Manager {
	m := &Manager{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Scheduling operations by name and result code.",
		}, []string{"op", "code"}),
		resolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Time spent resolving tag and template associations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		activePatterns: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_patterns",
			Help:      "Distinct live patterns seen by the last resolve run.",
		}, []string{"owner_kind"}),
		associations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "associations_created_total",
			Help:      "New goal associations written by the resolver.",
		}, []string{"owner_kind"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status.",
		}, []string{"method", "status"}),
	}
	m.registry.MustRegister(m.operations, m.resolveDuration, m.activePatterns, m.associations, m.httpRequests)
	return m
}

// ObserveOperation counts one finished operation. code is empty on success.
func (m *Manager) ObserveOperation(op, code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "OK"
	}
	m.operations.WithLabelValues(op, code).Inc()
}

// ObserveResolve records one resolve run.
func (m *Manager) ObserveResolve(d time.Duration) {
	if m == nil {
		return
	}
	m.resolveDuration.Observe(d.Seconds())
}

// SetActivePatterns records the live pattern count for an owner kind.
func (m *Manager) SetActivePatterns(ownerKind string, n int) {
	if m == nil {
		return
	}
	m.activePatterns.WithLabelValues(ownerKind).Set(float64(n))
}

// AddAssociations counts newly written associations.
func (m *Manager) AddAssociations(ownerKind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.associations.WithLabelValues(ownerKind).Add(float64(n))
}

// ObserveHTTP counts one HTTP response.
func (m *Manager) ObserveHTTP(method, status string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, status).Inc()
}

// Registry exposes the underlying registry for tests and custom exporters.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
