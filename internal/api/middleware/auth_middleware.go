package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// Principal 是当前请求的调用方身份。
type Principal struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// MockPrincipal 是尚未接入真实认证时所有请求共用的身份。
var MockPrincipal = Principal{UserID: "mock_user", Username: "test_user"}

// AuthMiddleware 要求 Bearer 令牌存在，令牌内容暂不校验，统一注入 MockPrincipal。
func AuthMiddleware(onUnauthorized func(*gin.Context)) gin.HandlerFunc {
	if onUnauthorized == nil {
		onUnauthorized = func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		}
	}
	return func(c *gin.Context) {
		parts := strings.Fields(c.GetHeader("Authorization"))
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			onUnauthorized(c)
			return
		}

		c.Set(principalKey, MockPrincipal)
		c.Next()
	}
}

// CurrentUser 返回 AuthMiddleware 注入的身份。
func CurrentUser(c *gin.Context) (Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := value.(Principal)
	return p, ok
}
