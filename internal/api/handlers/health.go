package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/progclub/duel-arena-backend/internal/catalog"
	"github.com/progclub/duel-arena-backend/pkg/database"
)

type HealthHandler struct {
	db      *database.DB
	catalog *catalog.Catalog
}

func NewHealthHandler(db *database.DB, catalog *catalog.Catalog) *HealthHandler {
	return &HealthHandler{db: db, catalog: catalog}
}

// Health GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "database unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"problems": h.catalog.Size(),
	})
}
