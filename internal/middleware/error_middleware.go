package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SinTan1729/chhoto-url/internal/apperrors"
	"github.com/SinTan1729/chhoto-url/internal/i18n"
	"github.com/SinTan1729/chhoto-url/response"
)

// GlobalErrorMiddleware 把 handler 通过 c.Error 推入的错误渲染成统一的 JSON 响应
func GlobalErrorMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := apperrors.From(c.Errors.Last().Err)
		if appErr.IsServerError() {
			logger.Error("Request failed",
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.String("request_id", c.GetString(RequestIDKey)),
				zap.Error(appErr),
			)
		} else {
			logger.Debug("Request rejected",
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", appErr.Code),
				zap.String("reason", appErr.Message),
			)
		}

		reason := i18n.T(c.Request.Context(), appErr.MessageID, appErr.Message, nil)
		c.AbortWithStatusJSON(appErr.Code, response.Fail(reason))
	}
}
