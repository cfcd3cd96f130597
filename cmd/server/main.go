package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/progclub/duel-arena-backend/internal/api"
	"github.com/progclub/duel-arena-backend/internal/bracket"
	"github.com/progclub/duel-arena-backend/internal/catalog"
	"github.com/progclub/duel-arena-backend/internal/config"
	"github.com/progclub/duel-arena-backend/internal/judge"
	"github.com/progclub/duel-arena-backend/internal/repository"
	"github.com/progclub/duel-arena-backend/internal/service"
	"github.com/progclub/duel-arena-backend/internal/websocket"
	"github.com/progclub/duel-arena-backend/pkg/database"
	"github.com/progclub/duel-arena-backend/pkg/distributed"
	"github.com/progclub/duel-arena-backend/pkg/logger"
	"github.com/progclub/duel-arena-backend/pkg/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger.Init(cfg.Env, cfg.LogLevel)
	defer logger.Sync()

	// 데이터베이스
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", "error", err)
	}
	defer db.Close()

	// Redis
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("invalid redis URL", "error", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("failed to connect to redis", "error", err)
	}

	// 외부 서비스 클라이언트
	judgeClient := judge.NewClient(cfg.JudgeBaseURL, cfg.JudgeTimeout)
	bracketClient := bracket.NewClient(cfg.BracketBaseURL, cfg.BracketUsername, cfg.BracketAPIKey, cfg.JudgeTimeout)

	// 문제 카탈로그
	problemCatalog := catalog.New(judgeClient, cfg.CatalogRefresh)
	startCtx, cancelStart := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := problemCatalog.Start(startCtx); err != nil {
		cancelStart()
		logger.Fatal("failed to load problem catalog", "error", err)
	}
	cancelStart()
	defer problemCatalog.Stop()

	if cfg.WritersPath != "" {
		if err := problemCatalog.LoadWriters(cfg.WritersPath); err != nil {
			logger.Fatal("failed to load contest writers", "error", err)
		}
	}

	// 저장소
	duelRepo := repository.NewDuelRepository(db)
	ratingRepo := repository.NewRatingRepository(db)
	contestantRepo := repository.NewContestantRepository(db)
	tournamentRepo := repository.NewTournamentRepository(db)
	handleRepo := repository.NewHandleRepository(db)

	// WebSocket 허브
	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Stop()

	// 서비스
	lockManager := distributed.NewRedisLockManager(redisClient)
	reportQueue := distributed.NewReportQueue(redisClient, "bracket-reports")

	tournamentService := service.NewTournamentService(
		bracketClient,
		contestantRepo,
		tournamentRepo,
		service.NewRedisLifecycleLock(lockManager),
		reportQueue,
		"Weekly Duel Tournament",
		cfg.BracketURLStub,
	)

	duelScheduler := scheduler.New()
	defer duelScheduler.Close()

	selectorService := service.NewSelectorService(
		problemCatalog, cfg.RatingFloor, cfg.SuggestedRatingDelta,
		rand.New(rand.NewSource(time.Now().UnixNano())),
	)

	duelService := service.NewDuelService(
		duelRepo,
		handleRepo,
		judgeClient,
		selectorService,
		service.NewRatingService(),
		tournamentService,
		hub,
		duelScheduler,
		problemCatalog,
		cfg.DuelExpiry,
		cfg.SettleDelay,
		cfg.InvalidateWindow,
	)

	// 브래킷 보고 워커
	syncWorker := service.NewBracketSyncWorker(tournamentService, reportQueue, cfg.BracketSyncInterval)
	syncWorker.Start()
	defer syncWorker.Stop()

	// HTTP 서버
	router := api.Router(cfg, db, duelService, tournamentService, ratingRepo, handleRepo, judgeClient, problemCatalog, hub, redisClient)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", "error", err)
		}
	}()

	// 종료 시그널 대기
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}

	logger.Info("server stopped")
}
