package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/progclub/duel-arena-backend/internal/api/handlers"
	"github.com/progclub/duel-arena-backend/internal/api/middleware"
	"github.com/progclub/duel-arena-backend/internal/catalog"
	"github.com/progclub/duel-arena-backend/internal/config"
	"github.com/progclub/duel-arena-backend/internal/repository"
	"github.com/progclub/duel-arena-backend/internal/service"
	"github.com/progclub/duel-arena-backend/internal/websocket"
	"github.com/progclub/duel-arena-backend/pkg/database"
	"github.com/progclub/duel-arena-backend/pkg/ratelimit"
)

// Router 전체 라우팅 구성
func Router(
	cfg *config.Config,
	db *database.DB,
	duels *service.DuelService,
	tournaments *service.TournamentService,
	ratings *repository.RatingRepository,
	handles *repository.HandleRepository,
	judge handlers.JudgeVerifier,
	problemCatalog *catalog.Catalog,
	hub *websocket.Hub,
	redisClient *redis.Client,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())

	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	healthHandler := handlers.NewHealthHandler(db, problemCatalog)
	duelHandler := handlers.NewDuelHandler(duels)
	tournamentHandler := handlers.NewTournamentHandler(tournaments)
	leaderboardHandler := handlers.NewLeaderboardHandler(ratings)
	handleHandler := handlers.NewHandleHandler(handles, judge)

	router.GET("/health", healthHandler.Health)

	defaultLimit := middleware.RateLimit(middleware.DefaultRateLimit())
	// 도전 생성은 저지 호출을 동반하므로 인스턴스 간 공유 제한을 건다
	challengeLimit := middleware.RedisRateLimit(
		ratelimit.NewRedisRateLimiter(redisClient, "challenge"), 6, time.Minute)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Identity(cfg))
	v1.Use(defaultLimit)
	{
		// WebSocket 이벤트 스트림
		v1.GET("/ws", func(c *gin.Context) {
			websocket.ServeWS(hub, c.Writer, c.Request, middleware.UserID(c))
		})

		handlesGroup := v1.Group("/handles")
		{
			handlesGroup.POST("", handleHandler.Link)
			handlesGroup.GET("/me", handleHandler.My)
		}

		duelsGroup := v1.Group("/duels")
		{
			duelsGroup.POST("/challenge", challengeLimit, duelHandler.Challenge)
			duelsGroup.POST("/accept", duelHandler.Accept)
			duelsGroup.POST("/decline", duelHandler.Decline)
			duelsGroup.POST("/withdraw", duelHandler.Withdraw)
			duelsGroup.POST("/complete", duelHandler.Complete)
			duelsGroup.POST("/draw", duelHandler.OfferDraw)
			duelsGroup.POST("/invalidate", duelHandler.Invalidate)
			duelsGroup.GET("/ongoing", duelHandler.Ongoing)
			duelsGroup.GET("/pending", duelHandler.Pending)
			duelsGroup.GET("/recent", duelHandler.Recent)
		}

		tournamentGroup := v1.Group("/tournament")
		{
			tournamentGroup.POST("/register", tournamentHandler.Register)
			tournamentGroup.GET("/standings", tournamentHandler.Standings)
			tournamentGroup.GET("/contestants", tournamentHandler.Contestants)
			tournamentGroup.GET("/matches", tournamentHandler.OpenMatches)
		}

		leaderboardGroup := v1.Group("/leaderboard")
		{
			leaderboardGroup.GET("", leaderboardHandler.Top)
			leaderboardGroup.GET("/me", leaderboardHandler.My)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.RequireAdmin())
		{
			admin.POST("/duels/:id/invalidate", duelHandler.AdminInvalidate)
			admin.POST("/tournament/begin", tournamentHandler.Begin)
			admin.POST("/tournament/destroy", tournamentHandler.Destroy)
		}
	}

	return router
}
