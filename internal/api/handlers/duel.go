package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/progclub/duel-arena-backend/internal/api/middleware"
	"github.com/progclub/duel-arena-backend/internal/models"
	"github.com/progclub/duel-arena-backend/internal/service"
)

type DuelHandler struct {
	duels *service.DuelService
}

func NewDuelHandler(duels *service.DuelService) *DuelHandler {
	return &DuelHandler{duels: duels}
}

type challengeRequest struct {
	ChallengeeID string `json:"challengeeId" binding:"required"`
	Official     bool   `json:"official"`
	Rating       int    `json:"rating"` // 0이면 제안 난이도 사용
}

// Challenge POST /api/v1/duels/challenge
func (h *DuelHandler) Challenge(c *gin.Context) {
	var req challengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dtype := models.DuelTypeUnofficial
	if req.Official {
		dtype = models.DuelTypeOfficial
	}

	duel, err := h.duels.Challenge(c.Request.Context(), middleware.UserID(c), req.ChallengeeID, dtype, req.Rating)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, duel)
}

// Accept POST /api/v1/duels/accept
func (h *DuelHandler) Accept(c *gin.Context) {
	view, err := h.duels.Accept(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// Decline POST /api/v1/duels/decline
func (h *DuelHandler) Decline(c *gin.Context) {
	view, err := h.duels.Decline(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// Withdraw POST /api/v1/duels/withdraw
func (h *DuelHandler) Withdraw(c *gin.Context) {
	view, err := h.duels.Withdraw(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// Complete POST /api/v1/duels/complete
func (h *DuelHandler) Complete(c *gin.Context) {
	result, err := h.duels.Complete(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// OfferDraw POST /api/v1/duels/draw
func (h *DuelHandler) OfferDraw(c *gin.Context) {
	result, err := h.duels.OfferDraw(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Invalidate POST /api/v1/duels/invalidate
func (h *DuelHandler) Invalidate(c *gin.Context) {
	view, err := h.duels.Invalidate(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// AdminInvalidate POST /api/v1/admin/duels/:id/invalidate
func (h *DuelHandler) AdminInvalidate(c *gin.Context) {
	view, err := h.duels.AdminInvalidate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// Ongoing GET /api/v1/duels/ongoing
func (h *DuelHandler) Ongoing(c *gin.Context) {
	views, err := h.duels.Ongoing(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"duels": views})
}

// Pending GET /api/v1/duels/pending
func (h *DuelHandler) Pending(c *gin.Context) {
	views, err := h.duels.Pending(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"duels": views})
}

// Recent GET /api/v1/duels/recent
func (h *DuelHandler) Recent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	duels, err := h.duels.Recent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"duels": duels})
}
