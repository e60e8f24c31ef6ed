// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"satyam-ai-go/pkg/log"
	"satyam-ai-go/pkg/token"
)

// ContextUserID 是 Gin 上下文中保存已认证用户 ID 的键。
const ContextUserID = "userID"

const bearerPrefix = "Bearer "

// TokenVerifier 校验 token 并返回其中的用户信息。
type TokenVerifier interface {
	VerifyToken(tokenString string) (*token.CustomClaims, error)
}

// OptionalAuth 在请求带有有效 Bearer token 时写入用户 ID，否则按游客继续处理。
func OptionalAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid, ok := authenticate(verifier, c.GetHeader("Authorization")); ok {
			c.Set(ContextUserID, uid)
		}
		c.Next()
	}
}

// RequireAuth 要求请求带有有效的 Bearer token。
func RequireAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := authenticate(verifier, c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效或已过期的 token", "data": nil})
			return
		}
		c.Set(ContextUserID, uid)
		c.Next()
	}
}

func authenticate(verifier TokenVerifier, authHeader string) (uint, bool) {
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return 0, false
	}
	return VerifyRaw(verifier, strings.TrimPrefix(authHeader, bearerPrefix))
}

// VerifyRaw 校验不带前缀的 token，供 WebSocket 的查询参数使用。
func VerifyRaw(verifier TokenVerifier, raw string) (uint, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	claims, err := verifier.VerifyToken(raw)
	if err != nil {
		log.Debugf("[Auth] token 校验失败: %v", err)
		return 0, false
	}
	return claims.UserID, true
}

// UserID 返回当前请求的用户 ID，游客返回 nil。
func UserID(c *gin.Context) *uint {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return nil
	}
	uid, ok := v.(uint)
	if !ok {
		return nil
	}
	return &uid
}
