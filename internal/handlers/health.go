package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"matchpulse/internal/config"
	"matchpulse/internal/services"
	"matchpulse/pkg/sportsapi"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// HealthHandler reports liveness and dependency health.
type HealthHandler struct {
	config *config.Config
	db     *gorm.DB
	sports sportsapi.SportsDataInterface
	hub    *services.LiveHub
	logger *logrus.Logger
}

func NewHealthHandler(cfg *config.Config, db *gorm.DB, sports sportsapi.SportsDataInterface, hub *services.LiveHub) *HealthHandler {
	return &HealthHandler{
		config: cfg,
		db:     db,
		sports: sports,
		hub:    hub,
		logger: logrus.StandardLogger(),
	}
}

// HealthResponse is the full health report.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Services  map[string]ServiceInfo `json:"services"`
	System    SystemInfo             `json:"system"`
}

// ServiceInfo is one dependency's health entry.
type ServiceInfo struct {
	Status  string      `json:"status"`
	Latency string      `json:"latency,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// SystemInfo carries process-level facts.
type SystemInfo struct {
	Uptime    time.Duration `json:"uptime"`
	Version   string        `json:"version"`
	GoVersion string        `json:"go_version"`
}

var startTime = time.Now()

// Health checks the database and the sports data provider. A provider
// outage degrades the report but keeps the process serving.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Version:   "1.0.0",
		Timestamp: time.Now().UTC(),
		Services:  make(map[string]ServiceInfo),
		System: SystemInfo{
			Uptime:    time.Since(startTime),
			Version:   "1.0.0",
			GoVersion: runtime.Version(),
		},
	}

	allHealthy := true
	h.checkDatabase(ctx, &response, &allHealthy)
	h.checkSportsAPI(ctx, &response)
	h.checkLiveHub(&response)

	if !allHealthy {
		response.Status = "degraded"
	}

	statusCode := http.StatusOK
	if response.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, response)
}

// Ready answers the readiness probe: up once the database accepts queries.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	ready := true
	checks := make(map[string]string)

	if err := h.pingDatabase(ctx); err != nil {
		checks["database"] = "not_ready"
		ready = false
	} else {
		checks["database"] = "ready"
	}

	response := map[string]interface{}{
		"ready":     ready,
		"timestamp": time.Now().UTC(),
		"services":  checks,
	}

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, response)
}

func (h *HealthHandler) pingDatabase(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (h *HealthHandler) checkDatabase(ctx context.Context, response *HealthResponse, allHealthy *bool) {
	start := time.Now()

	serviceInfo := ServiceInfo{
		Latency: time.Since(start).String(),
		Details: map[string]interface{}{
			"host": h.config.Database.Host,
			"port": h.config.Database.Port,
		},
	}
	if err := h.pingDatabase(ctx); err != nil {
		serviceInfo.Status = "unhealthy"
		serviceInfo.Error = err.Error()
		*allHealthy = false
	} else {
		serviceInfo.Status = "healthy"
	}
	serviceInfo.Latency = time.Since(start).String()
	response.Services["database"] = serviceInfo
}

func (h *HealthHandler) checkSportsAPI(ctx context.Context, response *HealthResponse) {
	start := time.Now()

	serviceInfo := ServiceInfo{
		Details: map[string]interface{}{
			"base_url": h.config.SportsAPI.BaseURL,
		},
	}
	if err := h.sports.HealthCheck(ctx); err != nil {
		// Provider outages degrade live refresh only; stored fixture
		// data keeps the rest of the engine working.
		serviceInfo.Status = "unhealthy"
		serviceInfo.Error = err.Error()
		h.logger.Warnf("sports data provider unhealthy: %v", err)
	} else {
		serviceInfo.Status = "healthy"
	}
	serviceInfo.Latency = time.Since(start).String()
	response.Services["sports_api"] = serviceInfo
}

func (h *HealthHandler) checkLiveHub(response *HealthResponse) {
	response.Services["live_hub"] = ServiceInfo{
		Status: "healthy",
		Details: map[string]interface{}{
			"connected_clients": h.hub.GetClientCount(),
		},
	}
}
