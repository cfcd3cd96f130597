package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// UserIDKey 컨텍스트에 저장되는 호스트 제공 사용자 ID
	UserIDKey = "userID"
	// IsAdminKey 관리자 여부
	IsAdminKey = "isAdmin"

	userIDHeader = "X-User-ID"
)

// AdminChecker 관리자 판별자 (설정의 허용 목록)
type AdminChecker interface {
	IsAdmin(userID string) bool
}

// Identity 호스트 게이트웨이가 붙여준 사용자 ID를 읽는다.
// 인증 자체는 게이트웨이 책임이고, 여기서는 신뢰하고 전달만 한다.
func Identity(admins AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(userIDHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing " + userIDHeader + " header",
			})
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(IsAdminKey, admins.IsAdmin(userID))
		c.Next()
	}
}

// RequireAdmin 관리자 전용 엔드포인트 가드
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(IsAdminKey) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "admin privileges required",
			})
			return
		}
		c.Next()
	}
}

// UserID 컨텍스트에서 사용자 ID 꺼내기
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
