package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/das-api/internal/service"
)

// HealthChecker reports datastore health.
type HealthChecker interface {
	Healthy() bool
}

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	db      HealthChecker
}

// NewMetricsHandler constructs a metrics handler.
func NewMetricsHandler(metrics *service.MetricsService, db HealthChecker) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, db: db}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health reports liveness.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports whether the datastore connection is usable.
func (h *MetricsHandler) Ready(c *gin.Context) {
	healthy := h.db != nil && h.db.Healthy()
	h.metrics.SetDatastoreHealthy(healthy)
	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "datastore": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "datastore": "up"})
}
