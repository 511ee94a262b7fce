package handlers

import (
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// IngestedMetric is one counter event reported by a dashboard client.
type IngestedMetric struct {
	Name   string            `json:"name" binding:"required"`
	Value  float64           `json:"value"`
	Labels map[string]string `json:"labels"`
}

// MetricsIngestRequest is the client report payload.
type MetricsIngestRequest struct {
	Source    string           `json:"source" binding:"required"` // dashboard|admin
	SessionID string           `json:"session_id"`
	Metrics   []IngestedMetric `json:"metrics" binding:"required"`
}

// MetricsAggregator accumulates counters in memory.
type MetricsAggregator struct {
	mu      sync.RWMutex
	counter map[string]map[string]float64
}

func NewMetricsAggregator() *MetricsAggregator {
	return &MetricsAggregator{counter: make(map[string]map[string]float64)}
}

func (a *MetricsAggregator) Add(name string, labels map[string]string, v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.counter[name]; !ok {
		a.counter[name] = make(map[string]float64)
	}
	a.counter[name][labelsKey(labels)] += v
}

func (a *MetricsAggregator) Snapshot() map[string]map[string]float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]map[string]float64, len(a.counter))
	for n, series := range a.counter {
		m := make(map[string]float64, len(series))
		for k, v := range series {
			m[k] = v
		}
		out[n] = m
	}
	return out
}

// MetricsIngestHandler accepts whitelisted client-side counters.
type MetricsIngestHandler struct {
	agg *MetricsAggregator
}

func NewMetricsIngestHandler(agg *MetricsAggregator) *MetricsIngestHandler {
	return &MetricsIngestHandler{agg: agg}
}

var allowedMetrics = map[string]bool{
	"dashboard_ws_reconnects_total":    true,
	"dashboard_page_views_total":       true,
	"dashboard_prediction_views_total": true,
	"admin_actions_total":              true,
	"admin_manual_triggers_total":      true,
}

func (h *MetricsIngestHandler) Ingest(c *gin.Context) {
	var req MetricsIngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	for _, m := range req.Metrics {
		if !allowedMetrics[m.Name] {
			continue
		}
		labels := map[string]string{"source": req.Source}
		if req.SessionID != "" {
			labels["session"] = req.SessionID
		}
		for k, v := range m.Labels {
			labels[k] = v
		}
		val := m.Value
		if val == 0 {
			val = 1
		}
		h.agg.Add(m.Name, labels, val)
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// labelsKey renders a stable series key from the label set.
func labelsKey(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for idx, k := range keys {
		if idx > 0 {
			b.WriteString(",")
		}
		b.WriteString(k + "=\"" + m[k] + "\"")
	}
	return b.String()
}
