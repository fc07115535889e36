package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tattootrack/internal/metrics"
)

// MetricsHandler exposes the domain counters as JSON for the dashboard.
type MetricsHandler struct {
	metrics *metrics.Metrics
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(m *metrics.Metrics) *MetricsHandler {
	return &MetricsHandler{metrics: m}
}

// Summary handles the counters snapshot.
// @Summary     Metrics summary
// @Description Scheduling conflicts, automatic transactions, calendar sync results and cache hit rate
// @Tags        metrics
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} metrics.Snapshot "Counters"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /metrics/summary [get]
func (h *MetricsHandler) Summary(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}
