package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"matchpulse/internal/services"
	"matchpulse/pkg/sportsapi"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LeagueHandler covers league CRUD, standings and the provider sync.
type LeagueHandler struct {
	leagues  *services.LeagueService
	fixtures *services.FixtureService
	sports   sportsapi.SportsDataInterface
	logger   *logrus.Logger
}

func NewLeagueHandler(leagues *services.LeagueService, fixtures *services.FixtureService, sports sportsapi.SportsDataInterface, logger *logrus.Logger) *LeagueHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LeagueHandler{leagues: leagues, fixtures: fixtures, sports: sports, logger: logger}
}

func (h *LeagueHandler) List(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	leagues, err := h.leagues.List(c.Request.Context(), activeOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list leagues", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, leagues)
}

func (h *LeagueHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	league, err := h.leagues.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrLeagueNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "League not found", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to load league", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, league)
}

func (h *LeagueHandler) Create(c *gin.Context) {
	var req services.LeagueCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	league, err := h.leagues.Create(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to create league", Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, league)
}

func (h *LeagueHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req services.LeagueUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	league, err := h.leagues.Update(c.Request.Context(), id, &req)
	if err != nil {
		if errors.Is(err, services.ErrLeagueNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "League not found", Message: err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to update league", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, league)
}

func (h *LeagueHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.leagues.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrLeagueNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "League not found", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to delete league", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "deleted"})
}

func (h *LeagueHandler) Standings(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	standings, err := h.leagues.Standings(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrLeagueNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "League not found", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to load standings", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, standings)
}

// Sync pulls the league's fixtures and table from the sports data provider
// and upserts them locally.
func (h *LeagueHandler) Sync(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	season := c.DefaultQuery("season", strconv.Itoa(time.Now().UTC().Year()))

	league, err := h.leagues.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrLeagueNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "League not found", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to load league", Message: err.Error()})
		return
	}

	apiFixtures, err := h.sports.FetchFixtures(c.Request.Context(), league.ExternalID, season)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Fixture fetch failed", Message: err.Error()})
		return
	}
	upserted, err := h.fixtures.UpsertFromProvider(c.Request.Context(), league.ID, apiFixtures)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Fixture upsert failed", Message: err.Error()})
		return
	}

	standingsSynced := true
	apiStandings, err := h.sports.FetchStandings(c.Request.Context(), league.ExternalID, season)
	if err != nil {
		// Standings are secondary; a failed table fetch does not undo the
		// fixture sync.
		h.logger.Warnf("standings fetch failed for league %d: %v", league.ID, err)
		standingsSynced = false
	} else {
		teamIDs, err := h.fixtures.TeamIDsByExternal(c.Request.Context())
		if err == nil {
			err = h.leagues.UpsertStandings(c.Request.Context(), league.ID, apiStandings, teamIDs)
		}
		if err != nil {
			h.logger.Warnf("standings upsert failed for league %d: %v", league.ID, err)
			standingsSynced = false
		}
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "synced",
		Data: gin.H{
			"fixtures_upserted": upserted,
			"standings_synced":  standingsSynced,
			"season":            season,
		},
	})
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid id", Message: err.Error()})
		return 0, false
	}
	return uint(id), true
}

// RegisterLeagueRoutes mounts the league surface.
func RegisterLeagueRoutes(r *gin.RouterGroup, handler *LeagueHandler) {
	leagues := r.Group("/leagues")
	{
		leagues.GET("", handler.List)
		leagues.POST("", handler.Create)
		leagues.GET(":id", handler.Get)
		leagues.PUT(":id", handler.Update)
		leagues.DELETE(":id", handler.Delete)
		leagues.GET(":id/standings", handler.Standings)
		leagues.POST(":id/sync", handler.Sync)
	}
}
