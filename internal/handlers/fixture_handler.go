package handlers

import (
	"errors"
	"net/http"

	"matchpulse/internal/services"

	"github.com/gin-gonic/gin"
)

// FixtureHandler is the read-only fixture surface.
type FixtureHandler struct {
	fixtures *services.FixtureService
}

func NewFixtureHandler(fixtures *services.FixtureService) *FixtureHandler {
	return &FixtureHandler{fixtures: fixtures}
}

func (h *FixtureHandler) List(c *gin.Context) {
	var req services.FixtureListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid query", Message: err.Error()})
		return
	}

	fixtures, total, err := h.fixtures.List(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list fixtures", Message: err.Error()})
		return
	}

	pages := int(total) / req.PageSize
	if int(total)%req.PageSize > 0 {
		pages++
	}
	c.JSON(http.StatusOK, PaginatedResponse{
		Data:     fixtures,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Pages:    pages,
	})
}

func (h *FixtureHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	fixture, err := h.fixtures.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrFixtureNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Fixture not found", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to load fixture", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, fixture)
}

// RegisterFixtureRoutes mounts the fixture surface.
func RegisterFixtureRoutes(r *gin.RouterGroup, handler *FixtureHandler) {
	fixtures := r.Group("/fixtures")
	{
		fixtures.GET("", handler.List)
		fixtures.GET(":id", handler.Get)
	}
}
