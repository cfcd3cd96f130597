package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/progclub/duel-arena-backend/internal/api/middleware"
	"github.com/progclub/duel-arena-backend/internal/models"
	"github.com/progclub/duel-arena-backend/internal/service"
)

type TournamentHandler struct {
	tournaments *service.TournamentService
}

func NewTournamentHandler(tournaments *service.TournamentService) *TournamentHandler {
	return &TournamentHandler{tournaments: tournaments}
}

type registerRequest struct {
	Handle      string `json:"handle" binding:"required"`
	DisplayName string `json:"displayName" binding:"required"`
}

// Register POST /api/v1/tournament/register
func (h *TournamentHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.tournaments.Register(c.Request.Context(), &models.Contestant{
		UserID:      middleware.UserID(c),
		Handle:      req.Handle,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "registered"})
}

// Begin POST /api/v1/admin/tournament/begin
func (h *TournamentHandler) Begin(c *gin.Context) {
	url, err := h.tournaments.Begin(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"standingsUrl": url})
}

// Destroy POST /api/v1/admin/tournament/destroy
func (h *TournamentHandler) Destroy(c *gin.Context) {
	if err := h.tournaments.Destroy(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "tournament destroyed"})
}

// Standings GET /api/v1/tournament/standings
func (h *TournamentHandler) Standings(c *gin.Context) {
	url, err := h.tournaments.CurrentStandingsURL(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"standingsUrl": url})
}

// Contestants GET /api/v1/tournament/contestants
func (h *TournamentHandler) Contestants(c *gin.Context) {
	contestants, err := h.tournaments.Contestants(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"contestants": contestants})
}

// OpenMatches GET /api/v1/tournament/matches
func (h *TournamentHandler) OpenMatches(c *gin.Context) {
	matches, err := h.tournaments.OpenMatches(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"matches": matches})
}
