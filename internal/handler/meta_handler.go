package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SinTan1729/chhoto-url/internal/config"
	"github.com/SinTan1729/chhoto-url/internal/dto"
)

type MetaHandler struct {
	cfg     *config.Config
	version string
}

func NewMetaHandler(cfg *config.Config, version string) *MetaHandler {
	return &MetaHandler{cfg: cfg, version: version}
}

// GetConfig GET /api/getconfig，只暴露前端需要的字段
func (h *MetaHandler) GetConfig(c *gin.Context) {
	var siteURL *string
	if h.cfg.Server.SiteURLConfigured {
		siteURL = &h.cfg.Server.SiteURL
	}
	link := h.cfg.Link
	c.JSON(http.StatusOK, dto.BackendConfig{
		Version:               h.version,
		SiteURL:               siteURL,
		AllowCapitalLetters:   link.AllowCapitalLetters,
		PublicMode:            link.PublicMode,
		PublicModeExpiryDelay: link.PublicModeExpiryDelay,
		SlugStyle:             link.SlugStyle.String(),
		SlugLength:            link.SlugLength,
		TryLongerSlug:         link.TryLongerSlug,
	})
}

// SiteURL GET /api/siteurl
func (h *MetaHandler) SiteURL(c *gin.Context) {
	if !h.cfg.Server.SiteURLConfigured {
		c.String(http.StatusOK, "unset")
		return
	}
	c.String(http.StatusOK, h.cfg.Server.SiteURL)
}

// Version GET /api/version
func (h *MetaHandler) Version(c *gin.Context) {
	c.String(http.StatusOK, h.version)
}
