package handlers

import (
	"net/http"

	"matchpulse/internal/services"

	"github.com/gin-gonic/gin"
)

// PredictionHandler accepts prediction and analysis results posted back by
// the workflow engine, and serves them to the dashboard.
type PredictionHandler struct {
	predictions *services.PredictionService
}

func NewPredictionHandler(predictions *services.PredictionService) *PredictionHandler {
	return &PredictionHandler{predictions: predictions}
}

func (h *PredictionHandler) List(c *gin.Context) {
	var req services.PredictionListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid query", Message: err.Error()})
		return
	}

	predictions, total, err := h.predictions.List(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list predictions", Message: err.Error()})
		return
	}

	pages := int(total) / req.PageSize
	if int(total)%req.PageSize > 0 {
		pages++
	}
	c.JSON(http.StatusOK, PaginatedResponse{
		Data:     predictions,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Pages:    pages,
	})
}

func (h *PredictionHandler) Create(c *gin.Context) {
	var req services.PredictionCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	prediction, err := h.predictions.Create(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to create prediction", Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, prediction)
}

// AnalysisCreateRequest is the write-back body for a finished analysis.
type AnalysisCreateRequest struct {
	FixtureID uint   `json:"fixture_id" binding:"required"`
	Model     string `json:"model" binding:"required"`
	Content   string `json:"content" binding:"required"`
}

func (h *PredictionHandler) CreateAnalysis(c *gin.Context) {
	var req AnalysisCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	analysis, err := h.predictions.CreateAnalysis(c.Request.Context(), req.FixtureID, req.Model, req.Content)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to create analysis", Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, analysis)
}

// RegisterPredictionRoutes mounts the prediction and analysis surfaces.
func RegisterPredictionRoutes(r *gin.RouterGroup, handler *PredictionHandler) {
	predictions := r.Group("/predictions")
	{
		predictions.GET("", handler.List)
		predictions.POST("", handler.Create)
	}
	r.POST("/analyses", handler.CreateAnalysis)
}
