package handlers

import (
	"net/http"

	"matchpulse/internal/metrics"
	"matchpulse/internal/services"

	"github.com/gin-gonic/gin"
)

type LiveWSHandler struct {
	hub *services.LiveHub
}

func NewLiveWSHandler(hub *services.LiveHub) *LiveWSHandler {
	return &LiveWSHandler{hub: hub}
}

func (h *LiveWSHandler) HandleWebSocket(c *gin.Context) {
	h.hub.HandleWebSocket(c)
}

func (h *LiveWSHandler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"connected_clients": h.hub.GetClientCount(),
		"status":            "running",
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
	})
}

// MetricsHandler exposes the in-process counters for scraping.
type MetricsHandler struct {
	agg *MetricsAggregator
}

func NewMetricsHandler(agg *MetricsAggregator) *MetricsHandler {
	return &MetricsHandler{agg: agg}
}

func (h *MetricsHandler) Snapshot(c *gin.Context) {
	dispatchTotal, dispatchBy := metrics.DispatchSnapshot()
	rateLimitTotal, rateLimitBy := metrics.RateLimitSnapshot()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"dispatch":   gin.H{"total": dispatchTotal, "by": dispatchBy},
			"rate_limit": gin.H{"total": rateLimitTotal, "by": rateLimitBy},
			"ingested":   h.agg.Snapshot(),
		},
	})
}
