package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"morntool/backend/internal/service"
)

// 管理后台账号的会员等级标记，由 create-admin 工具写入
const adminTier = "admin"

// JWTAuth JWT 认证中间件
type JWTAuth struct {
	auth *service.AuthService
	log  *zap.Logger
}

// NewJWTAuth 创建 JWT 认证中间件
func NewJWTAuth(auth *service.AuthService, log *zap.Logger) *JWTAuth {
	return &JWTAuth{auth: auth, log: log}
}

// RequireAuth 要求 JWT 认证
func (ja *JWTAuth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ja.extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			c.Abort()
			return
		}

		claims, err := ja.auth.ValidateToken(token)
		if err != nil {
			ja.log.Warn("invalid token",
				zap.String("ip", c.ClientIP()),
				zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			c.Abort()
			return
		}

		// 将用户信息存储到上下文
		c.Set("userID", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("tier", claims.Tier)

		c.Next()
	}
}

// RequireAdmin 要求管理员等级，必须排在 RequireAuth 之后
func (ja *JWTAuth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		tier, exists := c.Get("tier")
		if !exists || tier != adminTier {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "admin access required",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// OptionalAuth 可选的 JWT 认证，令牌无效时按匿名处理
func (ja *JWTAuth) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ja.extractToken(c)
		if token == "" {
			c.Next()
			return
		}

		if claims, err := ja.auth.ValidateToken(token); err == nil {
			c.Set("userID", claims.UserID)
			c.Set("email", claims.Email)
			c.Set("tier", claims.Tier)
		}
		c.Next()
	}
}

// extractToken 从 Authorization 头解析 Bearer 令牌
func (ja *JWTAuth) extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
