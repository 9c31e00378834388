package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceCacheRatio(t *testing.T) {
	m := NewMetricsService()
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.cacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cacheMisses))
	assert.InDelta(t, 2.0/3.0, testutil.ToFloat64(m.cacheHitRatio), 0.0001)
}

func TestMetricsServiceWorkflowCounters(t *testing.T) {
	m := NewMetricsService()
	m.RecordSubmission(SubmissionRouted)
	m.RecordSubmission(SubmissionRejected)
	m.RecordSubmission(SubmissionRouted)
	m.RecordForkCollision()
	m.RecordApprovalTransition("Approved")
	m.SetDatastoreHealthy(true)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.routingSubmissions.WithLabelValues(SubmissionRouted)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.routingSubmissions.WithLabelValues(SubmissionRejected)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.forkCollisions))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.approvalTransitions.WithLabelValues("Approved")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.datastoreHealthy))

	m.SetDatastoreHealthy(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.datastoreHealthy))
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/actions", http.StatusOK, 5*time.Millisecond)
	m.RecordForkCollision()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, "das_fork_collisions_total 1")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
		m.RecordCacheOperation(true, time.Millisecond)
		m.ObserveDBQuery("sites.FindByID", time.Millisecond)
		m.RecordSubmission(SubmissionFailed)
		m.SetDatastoreHealthy(true)
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
