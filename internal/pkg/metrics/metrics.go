// Package metrics owns the Prometheus registry of the dispatch service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Consolidation change kinds used as the "kind" label.
const (
	KindMerged    = "merged"
	KindMoved     = "moved"
	KindSplit     = "split"
	KindDeleted   = "deleted"
	KindCorrected = "corrected"
	KindReadied   = "readied"
)

// Assignment results used as the "result" label.
const (
	ResultAssigned        = "assigned"
	ResultAlreadyAssigned = "already_assigned"
	ResultRetryable       = "retryable"
	ResultFailed          = "failed"
)

// Metrics holds every collector of the service on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	AssignmentsTotal     *prometheus.CounterVec
	AssignmentDuration   prometheus.Histogram
	BatchesCreated       *prometheus.CounterVec
	BatchCreateConflicts prometheus.Counter
	LifecycleTransitions *prometheus.CounterVec
	ConsolidationChanges *prometheus.CounterVec

	NotificationsPublished *prometheus.CounterVec
	NotificationsDropped   prometheus.Counter

	CircuitBreakerState *prometheus.GaugeVec
}

type Config struct {
	Namespace string
}

func DefaultConfig() Config {
	return Config{Namespace: "dispatch"}
}

func New(config Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ns := config.Namespace
	m := &Metrics{
		registry: registry,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "path"}),

		AssignmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "assignments_total",
			Help:      "Order assignment attempts by result",
		}, []string{"result"}),

		AssignmentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "assignment_duration_seconds",
			Help:      "Time spent assigning one order, lock wait included",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),

		BatchesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "batches_created_total",
			Help:      "Batches created by zone",
		}, []string{"zone"}),

		BatchCreateConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "batch_create_conflicts_total",
			Help:      "Batch inserts that lost the (zone, sequence) race",
		}),

		LifecycleTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "batch_transitions_total",
			Help:      "Batch status transitions by target status",
		}, []string{"status"}),

		ConsolidationChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "consolidation_changes_total",
			Help:      "Changes applied by the consolidation job by kind",
		}, []string{"kind"}),

		NotificationsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "notifications_published_total",
			Help:      "Lifecycle events handed to the broker by outcome",
		}, []string{"status"}),

		NotificationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "notifications_dropped_total",
			Help:      "Lifecycle events dropped because the send queue was full",
		}),

		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"name"}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AssignmentsTotal,
		m.AssignmentDuration,
		m.BatchesCreated,
		m.BatchCreateConflicts,
		m.LifecycleTransitions,
		m.ConsolidationChanges,
		m.NotificationsPublished,
		m.NotificationsDropped,
		m.CircuitBreakerState,
	)

	return m
}

// Registry is exposed for tests that gather collected values.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// The helpers below are what use cases call. They accept a nil receiver so
// handlers built without metrics (tests, tools) need no guards.

func (m *Metrics) ObserveAssignment(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.AssignmentsTotal.WithLabelValues(result).Inc()
	m.AssignmentDuration.Observe(took.Seconds())
}

func (m *Metrics) BatchCreated(zone string) {
	if m == nil {
		return
	}
	m.BatchesCreated.WithLabelValues(zone).Inc()
}

func (m *Metrics) CreateConflict() {
	if m == nil {
		return
	}
	m.BatchCreateConflicts.Inc()
}

func (m *Metrics) Transition(status string) {
	if m == nil {
		return
	}
	m.LifecycleTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) ConsolidationChange(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ConsolidationChanges.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) BreakerState(name string, state float64) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(state)
}
