package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/progclub/duel-arena-backend/internal/repository"
	"github.com/progclub/duel-arena-backend/internal/service"
	"github.com/progclub/duel-arena-backend/pkg/logger"
)

// respondError 서비스 에러를 HTTP 상태 코드로 변환
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, service.ErrSelfChallenge),
		errors.Is(err, service.ErrNotEnoughContestants):
		status = http.StatusBadRequest

	case errors.Is(err, service.ErrNotChallenged),
		errors.Is(err, service.ErrNotChallenging),
		errors.Is(err, service.ErrNotActive),
		errors.Is(err, service.ErrNoDrawOffer),
		errors.Is(err, repository.ErrHandleNotLinked),
		errors.Is(err, service.ErrTournamentNotRunning):
		status = http.StatusNotFound

	case errors.Is(err, service.ErrAlreadyInDuel),
		errors.Is(err, service.ErrOpponentBusy),
		errors.Is(err, service.ErrNotPending),
		errors.Is(err, service.ErrRaceLost),
		errors.Is(err, service.ErrWindowExpired),
		errors.Is(err, service.ErrTournamentRunning),
		errors.Is(err, service.ErrAlreadyRegistered),
		errors.Is(err, service.ErrNoOpenMatch),
		errors.Is(err, service.ErrNotInTournament):
		status = http.StatusConflict

	case errors.Is(err, service.ErrNoCandidateProblem):
		status = http.StatusUnprocessableEntity

	case errors.Is(err, service.ErrInconclusive):
		// 채점이 끝나면 다시 시도
		status = http.StatusAccepted

	case errors.Is(err, service.ErrExternalUnavailable):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		logger.Error("unhandled error", "error", err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
