package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Duel timings
	DuelExpiry        time.Duration // 수락되지 않은 도전의 만료 시간
	InvalidateWindow  time.Duration // 듀얼리스트 본인이 무효화할 수 있는 시간
	SettleDelay       time.Duration // 수락 후 시작까지의 대기 시간
	RatingFloor       int           // 문제 선택 하한 레이팅
	SuggestedRatingDelta int        // 제안 레이팅 = 낮은 쪽 레이팅 + delta

	// Bracket service
	BracketBaseURL  string
	BracketUsername string
	BracketAPIKey   string
	BracketURLStub  string // 원격 토너먼트 URL 접두어 (접미어는 회차 인덱스)

	// Judge service
	JudgeBaseURL   string
	JudgeTimeout   time.Duration
	CatalogRefresh time.Duration
	WritersPath    string // 콘테스트 출제자 목록 JSON (비면 미사용)

	// Background workers
	BracketSyncInterval time.Duration

	// Host-supplied identity
	AdminUserIDs []string

	// CORS
	CORSAllowedOrigins []string
}

func Load() (*Config, error) {
	// .env 파일 로드 (있는 경우)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		Env:                  getEnv("ENV", "development"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		RedisURL:             getEnv("REDIS_URL", "redis://localhost:6379"),
		DuelExpiry:           parseDuration(getEnv("DUEL_EXPIRY", "5m"), 5*time.Minute),
		InvalidateWindow:     parseDuration(getEnv("DUEL_INVALIDATE_WINDOW", "2m"), 2*time.Minute),
		SettleDelay:          parseDuration(getEnv("DUEL_SETTLE_DELAY", "15s"), 15*time.Second),
		RatingFloor:          400,
		SuggestedRatingDelta: -400,
		BracketBaseURL:       getEnv("BRACKET_BASE_URL", "https://api.challonge.com/v1"),
		BracketUsername:      getEnv("BRACKET_USERNAME", ""),
		BracketAPIKey:        getEnv("BRACKET_API_KEY", ""),
		BracketURLStub:       getEnv("BRACKET_URL_STUB", "progclub"),
		JudgeBaseURL:         getEnv("JUDGE_BASE_URL", "https://codeforces.com/api"),
		JudgeTimeout:         parseDuration(getEnv("JUDGE_TIMEOUT", "15s"), 15*time.Second),
		CatalogRefresh:       parseDuration(getEnv("CATALOG_REFRESH", "1h"), time.Hour),
		WritersPath:          getEnv("CONTEST_WRITERS_PATH", ""),
		BracketSyncInterval:  parseDuration(getEnv("BRACKET_SYNC_INTERVAL", "30s"), 30*time.Second),
		AdminUserIDs:         splitList(getEnv("ADMIN_USER_IDS", "")),
		CORSAllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
	}

	return cfg, nil
}

// IsAdmin 관리자 여부 확인
func (c *Config) IsAdmin(userID string) bool {
	for _, id := range c.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
