package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dispatch/internal/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountersAndHandler(t *testing.T) {
	m := metrics.New(metrics.DefaultConfig())

	m.AssignmentsTotal.WithLabelValues(metrics.ResultAssigned).Inc()
	m.AssignmentsTotal.WithLabelValues(metrics.ResultAssigned).Inc()
	m.NotificationsDropped.Inc()

	assert.InDelta(t, 2, testutil.ToFloat64(m.AssignmentsTotal.WithLabelValues(metrics.ResultAssigned)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.NotificationsDropped), 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `dispatch_assignments_total{result="assigned"} 2`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := metrics.New(metrics.DefaultConfig())
	b := metrics.New(metrics.DefaultConfig())

	a.BatchCreateConflicts.Inc()

	assert.InDelta(t, 0, testutil.ToFloat64(b.BatchCreateConflicts), 0)
}

func TestMetrics_Helpers(t *testing.T) {
	m := metrics.New(metrics.DefaultConfig())

	m.ObserveAssignment(metrics.ResultRetryable, 20*time.Millisecond)
	m.BatchCreated("san-roque")
	m.CreateConflict()
	m.Transition("assigned")
	m.ConsolidationChange(metrics.KindMerged, 2)
	m.ConsolidationChange(metrics.KindSplit, 0)
	m.BreakerState("roster", 2)

	assert.InDelta(t, 1, testutil.ToFloat64(m.AssignmentsTotal.WithLabelValues(metrics.ResultRetryable)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.BatchesCreated.WithLabelValues("san-roque")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.BatchCreateConflicts), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LifecycleTransitions.WithLabelValues("assigned")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.ConsolidationChanges.WithLabelValues(metrics.KindMerged)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("roster")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.ConsolidationChanges))
}

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.ObserveAssignment(metrics.ResultAssigned, time.Second)
		m.BatchCreated("poblacion")
		m.CreateConflict()
		m.Transition("cancelled")
		m.ConsolidationChange(metrics.KindDeleted, 1)
		m.BreakerState("notifier", 0)
	})
}
