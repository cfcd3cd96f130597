package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/progclub/duel-arena-backend/pkg/logger"
	"github.com/progclub/duel-arena-backend/pkg/ratelimit"
)

// RateLimit 사용자(없으면 IP) 단위 토큰 버킷 제한
func RateLimit(limiter *ratelimit.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-User-ID")
		if key == "" {
			key = c.ClientIP()
		}

		if !limiter.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}

// DefaultRateLimit 일반 API 제한 (버스트 30, 초당 10 충전)
func DefaultRateLimit() *ratelimit.RateLimiter {
	return ratelimit.NewRateLimiter(30, 10)
}

// RedisRateLimit 인스턴스 간에 공유되는 슬라이딩 윈도우 제한.
// 외부 저지를 호출하는 무거운 쓰기 경로에 쓴다. Redis 장애 시에는
// 막지 않고 통과시킨다.
func RedisRateLimit(limiter *ratelimit.RedisRateLimiter, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-User-ID")
		if key == "" {
			key = c.ClientIP()
		}

		allowed, info, err := limiter.AllowWithInfo(c.Request.Context(), key, limit, window)
		if err != nil {
			logger.Warn("rate limit check failed, allowing request", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}
