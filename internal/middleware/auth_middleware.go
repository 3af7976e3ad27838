package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SinTan1729/chhoto-url/constant"
	"github.com/SinTan1729/chhoto-url/internal/apperrors"
	"github.com/SinTan1729/chhoto-url/internal/auth"
	"github.com/SinTan1729/chhoto-url/internal/ratelimit"
)

const RoleKey = "role"

// CredentialsFrom 提取 X-API-Key 头和会话 cookie
func CredentialsFrom(c *gin.Context) auth.Credentials {
	var creds auth.Credentials
	if values := c.Request.Header.Values(constant.APIKeyHeader); len(values) > 0 {
		creds.APIKey = values[0]
		creds.HasAPIKey = true
	}
	if cookie, err := c.Cookie(constant.SessionCookieName); err == nil {
		creds.SessionCookie = cookie
	}
	return creds
}

// RequireRole 鉴权通过后把角色写入上下文。allowPublic 为 false 时公共模式的访客同样被拒绝
func RequireRole(gate *auth.Gate, allowPublic bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := gate.Authorize(CredentialsFrom(c))
		switch {
		case decision.Role == auth.RoleAdmin, decision.Role == auth.RolePublic && allowPublic:
			c.Set(RoleKey, decision.Role)
			c.Next()
		case decision.Role == auth.RoleDenied:
			_ = c.Error(apperrors.UnauthorizedError(decision.MessageID, decision.Reason))
			c.Abort()
		default:
			_ = c.Error(apperrors.UnauthorizedError("not_logged_in", "Not logged in!"))
			c.Abort()
		}
	}
}

// RoleFrom 读取 RequireRole 写入的角色
func RoleFrom(c *gin.Context) auth.Role {
	if role, ok := c.Get(RoleKey); ok {
		if r, ok := role.(auth.Role); ok {
			return r
		}
	}
	return auth.RoleDenied
}

// PublicRateLimit 只限制公共模式的访客，管理员不受影响。限流后端异常时放行
func PublicRateLimit(limiter ratelimit.Limiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if RoleFrom(c) != auth.RolePublic {
			c.Next()
			return
		}
		allowed, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.Warn("Rate limiter unavailable, allowing request", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			logger.Info("Public submission rate limited", zap.String("client_ip", c.ClientIP()))
			_ = c.Error(apperrors.TooManyRequestsError())
			c.Abort()
			return
		}
		c.Next()
	}
}
