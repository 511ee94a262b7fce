package handlers

import (
	"errors"
	"net/http"
	"time"

	"matchpulse/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AutomationHandler exposes the automation engine: the manual trigger, the
// status view, the audit trail and the config admin surface.
type AutomationHandler struct {
	trigger   *services.TriggerService
	configSvc *services.AutomationConfigService
	audit     *services.AuditService
	estimator *services.EstimatorService
	logger    *logrus.Logger
}

func NewAutomationHandler(
	trigger *services.TriggerService,
	configSvc *services.AutomationConfigService,
	audit *services.AuditService,
	estimator *services.EstimatorService,
	logger *logrus.Logger,
) *AutomationHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AutomationHandler{
		trigger:   trigger,
		configSvc: configSvc,
		audit:     audit,
		estimator: estimator,
		logger:    logger,
	}
}

// TriggerRun runs one full automation pass synchronously and returns its
// summary. Only a missing configuration record is fatal.
func (h *AutomationHandler) TriggerRun(c *gin.Context) {
	summary, err := h.trigger.Run(c.Request.Context())
	if err != nil {
		h.logger.Errorf("manual trigger failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   summary.Status != "error",
		"runId":     summary.RunID,
		"timestamp": summary.StartedAt,
		"duration":  summary.DurationMs,
		"status":    summary.Status,
		"summary":   summary.Phases,
		"results":   summary.Results,
	})
}

// GetTrigger reports the engine's current schedule state.
func (h *AutomationHandler) GetTrigger(c *gin.Context) {
	status, err := h.trigger.Status(c.Request.Context())
	if err != nil {
		if errors.Is(err, services.ErrAutomationConfigNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Automation config not found", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to load automation status", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetStatus extends the trigger view with the schedule estimate, for the
// dashboard's polling loop.
func (h *AutomationHandler) GetStatus(c *gin.Context) {
	status, err := h.trigger.Status(c.Request.Context())
	if err != nil {
		if errors.Is(err, services.ErrAutomationConfigNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Automation config not found", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to load automation status", Message: err.Error()})
		return
	}

	estimate, err := h.estimator.Estimate(c.Request.Context(), time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to estimate schedule state", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"automation": status,
		"estimate":   estimate,
	})
}

// ListLogs pages through the audit trail, filterable by trigger type,
// outcome, run id and date range.
func (h *AutomationHandler) ListLogs(c *gin.Context) {
	var req services.AuditLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid query", Message: err.Error()})
		return
	}

	logs, total, err := h.audit.List(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list automation logs", Message: err.Error()})
		return
	}

	pages := int(total) / req.PageSize
	if int(total)%req.PageSize > 0 {
		pages++
	}
	c.JSON(http.StatusOK, PaginatedResponse{
		Data:     logs,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Pages:    pages,
	})
}

// UpdateConfig applies a partial merge onto the automation config.
func (h *AutomationHandler) UpdateConfig(c *gin.Context) {
	var req services.AutomationConfigUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	cfg, err := h.configSvc.Update(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, services.ErrAutomationConfigNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Automation config not found", Message: err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to update automation config", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, cfg)
}

// RegisterAutomationRoutes mounts the automation surface.
func RegisterAutomationRoutes(r *gin.RouterGroup, handler *AutomationHandler) {
	auto := r.Group("/automation")
	{
		auto.POST("/trigger", handler.TriggerRun)
		auto.GET("/trigger", handler.GetTrigger)
		auto.GET("/status", handler.GetStatus)
		auto.GET("/logs", handler.ListLogs)
		auto.PUT("/config", handler.UpdateConfig)
	}
}
