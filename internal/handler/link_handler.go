package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SinTan1729/chhoto-url/internal/apperrors"
	"github.com/SinTan1729/chhoto-url/internal/auth"
	"github.com/SinTan1729/chhoto-url/internal/dto"
	"github.com/SinTan1729/chhoto-url/internal/i18n"
	"github.com/SinTan1729/chhoto-url/internal/middleware"
	"github.com/SinTan1729/chhoto-url/internal/service"
	"github.com/SinTan1729/chhoto-url/response"
)

// 请求体上限，长链接本身没有长度限制，但不接受异常大的请求
const maxBodyBytes = 64 << 10

type LinkHandler struct {
	svc             *service.LinkService
	siteURL         string
	useTempRedirect bool
}

func NewLinkHandler(svc *service.LinkService, siteURL string, useTempRedirect bool) *LinkHandler {
	return &LinkHandler{svc: svc, siteURL: siteURL, useTempRedirect: useTempRedirect}
}

func readBody(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		zap.L().Warn("Failed to read request body",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		return nil, apperrors.ClientError("invalid_request", "Invalid request")
	}
	return body, nil
}

// AddLink POST /api/new
func (h *LinkHandler) AddLink(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	publicMode := middleware.RoleFrom(c) == auth.RolePublic
	created, err := h.svc.AddLink(c.Request.Context(), body, publicMode)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, response.Created(h.siteURL+"/"+created.Slug, created.ExpiryTime))
}

// ListLinks GET /api/all?page_after=&page_no=&page_size=
func (h *LinkHandler) ListLinks(c *gin.Context) {
	var query dto.ListLinksQuery
	// 参数无法解析时按未提供处理
	if err := c.ShouldBindQuery(&query); err != nil {
		zap.L().Debug("Ignoring invalid pagination parameters", zap.Error(err))
		query = dto.ListLinksQuery{PageAfter: c.Query("page_after")}
	}

	links, err := h.svc.ListLinks(c.Request.Context(), query)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, links)
}

// Expand POST /api/expand，请求体就是短链本身
func (h *LinkHandler) Expand(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	link, err := h.svc.Expand(c.Request.Context(), string(body))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, response.Info(link.LongURL, link.Hits, link.ExpiryTime))
}

// EditLink PUT /api/edit
func (h *LinkHandler) EditLink(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	slug, err := h.svc.EditLink(c.Request.Context(), body)
	if err != nil {
		_ = c.Error(err)
		return
	}
	reason := i18n.T(c.Request.Context(), "link_edited", "Edited "+slug, map[string]interface{}{"Slug": slug})
	c.JSON(http.StatusOK, response.OK(reason))
}

// DeleteLink DELETE /api/del/:shortlink
func (h *LinkHandler) DeleteLink(c *gin.Context) {
	slug := c.Param("shortlink")
	if err := h.svc.DeleteLink(c.Request.Context(), slug); err != nil {
		_ = c.Error(err)
		return
	}
	reason := i18n.T(c.Request.Context(), "link_deleted", "Deleted "+slug, map[string]interface{}{"Slug": slug})
	c.JSON(http.StatusOK, response.OK(reason))
}

// Redirect GET /:shortlink，挂在 NoRoute 上，带子路径的请求一律 404
func (h *LinkHandler) Redirect(c *gin.Context) {
	slug := strings.TrimPrefix(c.Request.URL.Path, "/")
	if c.Request.Method != http.MethodGet || slug == "" || strings.Contains(slug, "/") {
		_ = c.Error(apperrors.NotFoundError("not_found", "Not found!"))
		return
	}

	longURL, err := h.svc.Resolve(c.Request.Context(), slug)
	if err != nil {
		_ = c.Error(err)
		return
	}

	code := http.StatusPermanentRedirect
	if h.useTempRedirect {
		code = http.StatusTemporaryRedirect
	}
	c.Redirect(code, longURL)
}
