package handler

import (
	"github.com/gin-gonic/gin"
	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"go.uber.org/zap"

	"github.com/SinTan1729/chhoto-url/internal/auth"
	"github.com/SinTan1729/chhoto-url/internal/config"
	"github.com/SinTan1729/chhoto-url/internal/middleware"
	"github.com/SinTan1729/chhoto-url/internal/ratelimit"
	"github.com/SinTan1729/chhoto-url/internal/service"
)

// Deps 构造路由需要的全部依赖，由 main 组装
type Deps struct {
	Config    *config.Config
	Service   *service.LinkService
	Gate      *auth.Gate
	Limiter   ratelimit.Limiter
	Bundle    *goi18n.Bundle
	Languages []string
	Logger    *zap.Logger
	Version   string
}

func NewRouter(d Deps) *gin.Engine {
	limiter := d.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}

	r := gin.New()
	// 只有列出的代理发来的 X-Forwarded-For 才会被 ClientIP 采信，限流依赖这一点
	if err := r.SetTrustedProxies(d.Config.Server.TrustedProxies); err != nil {
		d.Logger.Warn("Invalid trusted proxies, trusting none",
			zap.Strings("trusted_proxies", d.Config.Server.TrustedProxies),
			zap.Error(err),
		)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.ZapGinLogger(d.Logger))
	r.Use(middleware.GlobalErrorMiddleware(d.Logger))
	r.Use(middleware.CorsMiddleware(d.Config.Server.AllowedOrigins))
	r.Use(middleware.CacheControl(d.Config.Server.CacheControlHeader))
	r.Use(middleware.I18nMiddleware(d.Bundle, d.Languages))

	links := NewLinkHandler(d.Service, d.Config.Server.SiteURL, d.Config.Server.UseTempRedirect)
	sessions := NewSessionHandler(d.Gate, d.Config.Server.SiteURL)
	meta := NewMetaHandler(d.Config, d.Version)

	adminOnly := middleware.RequireRole(d.Gate, false)
	adminOrPublic := middleware.RequireRole(d.Gate, true)

	api := r.Group("/api")
	{
		api.POST("/new", adminOrPublic, middleware.PublicRateLimit(limiter, d.Logger), links.AddLink)
		api.GET("/all", adminOnly, links.ListLinks)
		api.POST("/expand", adminOnly, links.Expand)
		api.PUT("/edit", adminOnly, links.EditLink)
		api.DELETE("/del/:shortlink", adminOnly, links.DeleteLink)

		api.POST("/login", sessions.Login)
		api.DELETE("/logout", sessions.Logout)
		api.GET("/whoami", sessions.WhoAmI)

		api.GET("/getconfig", adminOrPublic, meta.GetConfig)
		api.GET("/siteurl", meta.SiteURL)
		api.GET("/version", meta.Version)
	}

	// 短链跳转放在 NoRoute 上，避免根路径通配与 /api 冲突
	r.NoRoute(links.Redirect)

	return r
}
