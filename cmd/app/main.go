package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gomodule/redigo/redis"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/SinTan1729/chhoto-url/internal/auth"
	"github.com/SinTan1729/chhoto-url/internal/config"
	"github.com/SinTan1729/chhoto-url/internal/handler"
	"github.com/SinTan1729/chhoto-url/internal/i18n"
	"github.com/SinTan1729/chhoto-url/internal/ratelimit"
	"github.com/SinTan1729/chhoto-url/internal/repository"
	"github.com/SinTan1729/chhoto-url/internal/service"
	"github.com/SinTan1729/chhoto-url/pkg/logging"
)

// 构建时通过 -ldflags "-X main.version=..." 注入
var version = "dev"

func main() {
	flags := config.NewFlagSet(os.Args[0])
	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, notes, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, level, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Path:       cfg.Log.Path,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	logger.Info("Starting Chhoto URL", zap.String("version", version))
	for _, note := range notes {
		logger.Warn(note)
	}
	if cfg.Auth.APIKeySet && !cfg.Auth.HashArgon2 && !auth.IsStrongAPIKey(cfg.Auth.APIKey) {
		if suggested, err := auth.GenerateAPIKey(); err == nil {
			logger.Warn("API key is insecure, consider replacing it", zap.String("suggested_api_key", suggested))
		}
	}

	db, err := repository.OpenDB(cfg.DB, logger, level)
	if err != nil {
		logger.Fatal("Failed to open database", zap.String("path", cfg.DB.Path), zap.Error(err))
	}

	repo := repository.NewLinkRepository(db, nil, cfg.DB.QueryTimeout)
	svc, err := service.NewLinkService(repo, cfg.Link, nil, logger)
	if err != nil {
		logger.Fatal("Failed to init link service", zap.Error(err))
	}

	signer, err := auth.NewRandomTokenSigner()
	if err != nil {
		logger.Fatal("Failed to init session signer", zap.Error(err))
	}
	gate := auth.NewGate(cfg.Auth, cfg.Link.PublicMode, signer, nil, logger)

	var (
		limiter   ratelimit.Limiter
		redisPool *redis.Pool
	)
	if cfg.Redis.Addr != "" {
		redisPool = repository.NewRedisPool(cfg.Redis, logger)
		limiter = ratelimit.NewRedisLimiter(redisPool, cfg.RateLimit.PublicPerMinute)
		logger.Info("Public rate limiting backed by Redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		limiter = ratelimit.NewLocalLimiter(cfg.RateLimit.PublicPerMinute, cfg.RateLimit.PublicBurst)
	}

	bundle, languages, err := i18n.NewBundle("en")
	if err != nil {
		logger.Fatal("Failed to load locales", zap.Error(err))
	}

	scheduler := cron.New()
	if _, err := service.ScheduleCleanup(scheduler, svc, cfg.Cleanup.Schedule, logger); err != nil {
		logger.Fatal("Failed to schedule cleanup job", zap.String("schedule", cfg.Cleanup.Schedule), zap.Error(err))
	}
	scheduler.Start()

	gin.SetMode(gin.ReleaseMode)
	r := handler.NewRouter(handler.Deps{
		Config:    cfg,
		Service:   svc,
		Gate:      gate,
		Limiter:   limiter,
		Bundle:    bundle,
		Languages: languages,
		Logger:    logger,
		Version:   version,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server is running", zap.String("addr", srv.Addr), zap.String("site_url", cfg.Server.SiteURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 等待中断信号以优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	<-scheduler.Stop().Done()

	if redisPool != nil {
		if err := redisPool.Close(); err != nil {
			logger.Warn("Redis pool close failed", zap.Error(err))
		}
	}
	if err := repository.CloseDB(db); err != nil {
		logger.Warn("Database close failed", zap.Error(err))
	}

	logger.Info("Server exiting")
}
