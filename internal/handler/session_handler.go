package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SinTan1729/chhoto-url/constant"
	"github.com/SinTan1729/chhoto-url/internal/apperrors"
	"github.com/SinTan1729/chhoto-url/internal/auth"
	"github.com/SinTan1729/chhoto-url/internal/i18n"
	"github.com/SinTan1729/chhoto-url/internal/middleware"
	"github.com/SinTan1729/chhoto-url/response"
)

type SessionHandler struct {
	gate         *auth.Gate
	secureCookie bool
}

func NewSessionHandler(gate *auth.Gate, siteURL string) *SessionHandler {
	return &SessionHandler{gate: gate, secureCookie: strings.HasPrefix(siteURL, "https://")}
}

func (h *SessionHandler) setCookie(c *gin.Context, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     constant.SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   h.secureCookie,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// Login POST /api/login，请求体为明文密码
func (h *SessionHandler) Login(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !h.gate.CheckPassword(string(body)) {
		zap.L().Warn("Failed login attempt", zap.String("client_ip", c.ClientIP()))
		_ = c.Error(apperrors.UnauthorizedError("wrong_password", "Wrong password!"))
		return
	}

	h.setCookie(c, h.gate.IssueSession(), int(h.gate.SessionMaxAge().Seconds()))
	zap.L().Info("Successful login", zap.String("client_ip", c.ClientIP()))
	c.JSON(http.StatusOK, response.OK(i18n.T(c.Request.Context(), "correct_password", "Correct password!", nil)))
}

// Logout DELETE /api/logout，令牌不落库，清除 cookie 即可
func (h *SessionHandler) Logout(c *gin.Context) {
	if _, err := c.Cookie(constant.SessionCookieName); err != nil {
		_ = c.Error(apperrors.UnauthorizedError("not_logged_in_logout", "You don't seem to be logged in."))
		return
	}
	h.setCookie(c, "", -1)
	zap.L().Info("Successful logout")
	c.JSON(http.StatusOK, response.OK(i18n.T(c.Request.Context(), "logged_out", "Logged out!", nil)))
}

// WhoAmI GET /api/whoami 返回 admin / public / nobody
func (h *SessionHandler) WhoAmI(c *gin.Context) {
	decision := h.gate.Authorize(middleware.CredentialsFrom(c))
	c.String(http.StatusOK, decision.Role.String())
}
