package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/progclub/duel-arena-backend/internal/api/middleware"
	"github.com/progclub/duel-arena-backend/internal/repository"
)

// HandleStore 저지 핸들 연결 저장소
type HandleStore interface {
	Link(ctx context.Context, userID, handle string) error
	HandleOf(ctx context.Context, userID string) (string, error)
}

// JudgeVerifier 핸들 실존 확인용 (레이팅 조회가 성공하면 존재)
type JudgeVerifier interface {
	Ratings(ctx context.Context, handles []string) ([]int, error)
}

type HandleHandler struct {
	handles HandleStore
	judge   JudgeVerifier
}

func NewHandleHandler(handles HandleStore, judge JudgeVerifier) *HandleHandler {
	return &HandleHandler{handles: handles, judge: judge}
}

type linkRequest struct {
	Handle string `json:"handle" binding:"required"`
}

// Link POST /api/v1/handles
func (h *HandleHandler) Link(c *gin.Context) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 저지에 실제로 있는 핸들인지 먼저 확인
	if _, err := h.judge.Ratings(c.Request.Context(), []string{req.Handle}); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown judge handle"})
		return
	}

	userID := middleware.UserID(c)
	if err := h.handles.Link(c.Request.Context(), userID, req.Handle); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"userId": userID, "handle": req.Handle})
}

// My GET /api/v1/handles/me
func (h *HandleHandler) My(c *gin.Context) {
	userID := middleware.UserID(c)

	handle, err := h.handles.HandleOf(c.Request.Context(), userID)
	if errors.Is(err, repository.ErrHandleNotLinked) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"userId": userID, "handle": handle})
}
