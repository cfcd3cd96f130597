package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/progclub/duel-arena-backend/internal/models"
)

// RatingSource 리더보드용 레이팅 조회
type RatingSource interface {
	Rating(ctx context.Context, userID string) (int, error)
	Top(ctx context.Context, limit int) ([]models.RatingRow, error)
}

type LeaderboardHandler struct {
	ratings RatingSource
}

func NewLeaderboardHandler(ratings RatingSource) *LeaderboardHandler {
	return &LeaderboardHandler{ratings: ratings}
}

type leaderboardEntry struct {
	Rank   int    `json:"rank"`
	User   string `json:"userId"`
	Handle string `json:"handle,omitempty"`
	Rating int    `json:"rating"`
	Title  string `json:"title"`
	Color  int    `json:"color"`
}

// Top GET /api/v1/leaderboard
func (h *LeaderboardHandler) Top(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	rows, err := h.ratings.Top(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	entries := make([]leaderboardEntry, 0, len(rows))
	for i, row := range rows {
		rank := models.RankForRating(row.Rating)
		entries = append(entries, leaderboardEntry{
			Rank:   i + 1,
			User:   row.UserID,
			Handle: row.Handle,
			Rating: row.Rating,
			Title:  rank.Title,
			Color:  rank.ColorEmbed,
		})
	}

	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

// My GET /api/v1/leaderboard/me
func (h *LeaderboardHandler) My(c *gin.Context) {
	userID := c.GetString("userID")

	rating, err := h.ratings.Rating(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	rank := models.RankForRating(rating)
	c.JSON(http.StatusOK, gin.H{
		"userId": userID,
		"rating": rating,
		"title":  rank.Title,
		"color":  rank.ColorEmbed,
	})
}
