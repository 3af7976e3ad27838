package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/SinTan1729/chhoto-url/internal/apperrors"
	"github.com/SinTan1729/chhoto-url/internal/config"
	"github.com/SinTan1729/chhoto-url/internal/dto"
	"github.com/SinTan1729/chhoto-url/internal/model"
	"github.com/SinTan1729/chhoto-url/internal/repository"
	"github.com/SinTan1729/chhoto-url/pkg/slug"
	"github.com/SinTan1729/chhoto-url/pkg/utils"
)

// MaxExpiryDelay 约 5 年
const MaxExpiryDelay int64 = 157_784_760

// 自动生成的短链冲突时最多重试一次
const maxSlugRetries = 1

var errSlugRetriesExhausted = errors.New("generated short url collided after retry")

// CreatedLink AddLink 的结果
type CreatedLink struct {
	Slug       string
	ExpiryTime int64
}

type LinkService struct {
	repo     repository.LinkRepository
	cfg      config.LinkConfig
	validate *validator.Validate
	now      func() time.Time
	logger   *zap.Logger
}

func NewLinkService(repo repository.LinkRepository, cfg config.LinkConfig, now func() time.Time, logger *zap.Logger) (*LinkService, error) {
	v := validator.New()
	if err := utils.RegisterSlugValidation(v, cfg.AllowCapitalLetters); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &LinkService{repo: repo, cfg: cfg, validate: v, now: now, logger: logger}, nil
}

func (s *LinkService) Config() config.LinkConfig {
	return s.cfg
}

// AddLink 解析请求体并创建短链。usingPublicMode 为 true 时强制公共模式的过期上限
func (s *LinkService) AddLink(ctx context.Context, body []byte, usingPublicMode bool) (*CreatedLink, error) {
	var req dto.NewLinkRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, apperrors.ClientError("invalid_request", "Invalid request")
	}
	if err := s.validate.Struct(&req); err != nil {
		if failedOn(err, "ShortLink", "slug") && req.LongLink != "" {
			return nil, apperrors.ClientError("invalid_short_url", "Short URL is not valid")
		}
		return nil, apperrors.ClientError("invalid_request", "Invalid request")
	}

	generated := req.ShortLink == ""
	length := s.cfg.SlugLength
	if generated {
		req.ShortLink = slug.Generate(s.cfg.SlugStyle, length, s.cfg.AllowCapitalLetters)
	}
	delay := s.expiryDelay(req.ExpiryDelay, usingPublicMode)

	attempts := 1
	if generated && s.cfg.SlugStyle == slug.StyleUID && s.cfg.TryLongerSlug {
		attempts += maxSlugRetries
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			length += slug.RetryLengthIncrement
			req.ShortLink = slug.Generate(s.cfg.SlugStyle, length, s.cfg.AllowCapitalLetters)
			s.logger.Info("Generated short url collided, retrying with a longer one", zap.Int("length", length))
		}

		expiryTime, err := s.repo.Insert(ctx, req.ShortLink, req.LongLink, delay)
		if err == nil {
			s.logger.Info("Link created",
				zap.String("slug", req.ShortLink),
				zap.Int64("expiry_time", expiryTime),
				zap.Bool("public", usingPublicMode),
			)
			return &CreatedLink{Slug: req.ShortLink, ExpiryTime: expiryTime}, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			s.logger.Error("Failed to insert link", zap.String("slug", req.ShortLink), zap.Error(err))
			return nil, apperrors.ServerError(err)
		}
		if !generated {
			return nil, apperrors.ConflictError("short_url_in_use", "Short URL is already in use!")
		}
	}

	s.logger.Error("Generated short url collided",
		zap.String("slug", req.ShortLink),
		zap.String("style", s.cfg.SlugStyle.String()),
		zap.Int("attempts", attempts),
	)
	return nil, apperrors.ServerError(errSlugRetriesExhausted)
}

// expiryDelay 限制在 [0, MaxExpiryDelay]，公共模式下不允许永不过期
func (s *LinkService) expiryDelay(requested int64, usingPublicMode bool) int64 {
	delay := clamp(requested, 0, MaxExpiryDelay)
	if usingPublicMode && s.cfg.PublicModeExpiryDelay > 0 {
		ceiling := clamp(s.cfg.PublicModeExpiryDelay, 1, MaxExpiryDelay)
		if delay == 0 || delay > ceiling {
			delay = ceiling
		}
	}
	return delay
}

func clamp(v, lo, hi int64) int64 {
	return max(lo, min(v, hi))
}

// Resolve 访问短链，命中时计数加一
func (s *LinkService) Resolve(ctx context.Context, shortlink string) (string, error) {
	longURL, err := s.repo.ResolveAndHit(ctx, shortlink)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperrors.NotFoundError("not_found", "Not found!")
		}
		s.logger.Error("Failed to resolve link", zap.String("slug", shortlink), zap.Error(err))
		return "", apperrors.ServerError(err)
	}
	return longURL, nil
}

// Expand 查询短链详情，不增加计数
func (s *LinkService) Expand(ctx context.Context, shortlink string) (*model.Link, error) {
	shortlink = strings.TrimSpace(shortlink)
	if !utils.IsValidSlug(shortlink, s.cfg.AllowCapitalLetters) {
		return nil, apperrors.ClientError("expand_not_found", "The shortlink does not exist on the server.")
	}
	link, err := s.repo.Find(ctx, shortlink)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ClientError("expand_not_found", "The shortlink does not exist on the server.")
		}
		s.logger.Error("Failed to find link", zap.String("slug", shortlink), zap.Error(err))
		return nil, apperrors.ServerError(err)
	}
	return link, nil
}

// EditLink 修改目标地址，可选清零访问计数
func (s *LinkService) EditLink(ctx context.Context, body []byte) (string, error) {
	var req dto.EditLinkRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", apperrors.ClientError("malformed_request", "Malformed request!")
	}
	if err := s.validate.Struct(&req); err != nil {
		if failedOn(err, "ShortLink", "slug") || failedOn(err, "ShortLink", "required") {
			return "", apperrors.ClientError("invalid_shortlink", "Invalid shortlink!")
		}
		return "", apperrors.ClientError("malformed_request", "Malformed request!")
	}

	if err := s.repo.Edit(ctx, req.ShortLink, req.LongLink, *req.ResetHits); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperrors.ClientError("edit_not_found", "The short link was not found, and could not be edited.")
		}
		s.logger.Error("Failed to edit link", zap.String("slug", req.ShortLink), zap.Error(err))
		return "", apperrors.ServerError(err)
	}
	s.logger.Info("Link edited", zap.String("slug", req.ShortLink), zap.Bool("reset_hits", *req.ResetHits))
	return req.ShortLink, nil
}

// DeleteLink 删除短链，已过期但尚未清理的记录同样可以删除
func (s *LinkService) DeleteLink(ctx context.Context, shortlink string) error {
	if !utils.IsValidSlug(shortlink, s.cfg.AllowCapitalLetters) {
		return apperrors.NotFoundError("delete_not_found", "The short link was not found, and could not be deleted.")
	}
	if err := s.repo.Delete(ctx, shortlink); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFoundError("delete_not_found", "The short link was not found, and could not be deleted.")
		}
		s.logger.Error("Failed to delete link", zap.String("slug", shortlink), zap.Error(err))
		return apperrors.ServerError(err)
	}
	s.logger.Info("Link deleted", zap.String("slug", shortlink))
	return nil
}

// ListLinks 非正数的分页参数视为未提供
func (s *LinkService) ListLinks(ctx context.Context, query dto.ListLinksQuery) ([]dto.LinkView, error) {
	params := repository.ListParams{PageAfter: strings.TrimSpace(query.PageAfter)}
	if query.PageNo > 0 {
		params.PageNo = query.PageNo
	}
	if query.PageSize > 0 {
		params.PageSize = query.PageSize
	}

	links, err := s.repo.List(ctx, params)
	if err != nil {
		s.logger.Error("Failed to list links", zap.Any("params", params), zap.Error(err))
		return nil, apperrors.ServerError(err)
	}

	views := make([]dto.LinkView, 0, len(links))
	for _, l := range links {
		views = append(views, dto.LinkView{
			ShortLink:  l.ShortURL,
			LongLink:   l.LongURL,
			Hits:       l.Hits,
			ExpiryTime: l.ExpiryTime,
		})
	}
	return views, nil
}

// Sweep 清理已过期的记录，返回删除条数
func (s *LinkService) Sweep(ctx context.Context) (int64, error) {
	deleted, err := s.repo.Sweep(ctx, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("sweep expired links: %w", err)
	}
	return deleted, nil
}

// failedOn 判断校验错误是否来自指定字段的指定规则
func failedOn(err error, field, tag string) bool {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return false
	}
	for _, fe := range validationErrs {
		if fe.Field() == field && fe.Tag() == tag {
			return true
		}
	}
	return false
}
