package repository

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/SinTan1729/chhoto-url/internal/model"
)

var (
	// ErrConflict 短链被一条仍然有效的记录占用
	ErrConflict = errors.New("short url is taken by a live link")
	// ErrNotFound 没有匹配的有效记录
	ErrNotFound = errors.New("link not found")
)

const defaultPageSize = 10

// 过期判定统一使用 expiry_time > now，恰好等于 now 视为已过期
const liveCondition = "(expiry_time = 0 OR expiry_time > ?)"

const upsertSQL = `INSERT INTO urls (long_url, short_url, hits, expiry_time) VALUES (?, ?, 0, ?)
ON CONFLICT(short_url) DO UPDATE SET long_url = excluded.long_url, hits = 0, expiry_time = excluded.expiry_time
WHERE urls.expiry_time > 0 AND urls.expiry_time <= ?`

const resolveSQL = `UPDATE urls SET hits = hits + 1
WHERE short_url = ? AND (expiry_time = 0 OR expiry_time > ?)
RETURNING long_url`

// ListParams 三种分页方式互斥，优先级 PageAfter > PageNo > PageSize。零值表示未提供
type ListParams struct {
	PageAfter string
	PageNo    int
	PageSize  int
}

type LinkRepository interface {
	Find(ctx context.Context, slug string) (*model.Link, error)
	ResolveAndHit(ctx context.Context, slug string) (string, error)
	Insert(ctx context.Context, slug, longURL string, expiryDelay int64) (int64, error)
	Edit(ctx context.Context, slug, longURL string, resetHits bool) error
	Delete(ctx context.Context, slug string) error
	List(ctx context.Context, params ListParams) ([]model.Link, error)
	Sweep(ctx context.Context, now int64) (int64, error)
}

type linkRepository struct {
	db      *gorm.DB
	now     func() time.Time
	timeout time.Duration
}

// NewLinkRepository now 为 nil 时使用 time.Now，timeout <= 0 表示不额外设置超时
func NewLinkRepository(db *gorm.DB, now func() time.Time, timeout time.Duration) LinkRepository {
	if now == nil {
		now = time.Now
	}
	return &linkRepository{db: db, now: now, timeout: timeout}
}

// session 给每次调用加上超时，避免请求挂在写锁上
func (r *linkRepository) session(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if r.timeout <= 0 {
		return r.db.WithContext(ctx), func() {}
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	return r.db.WithContext(ctx), cancel
}

func (r *linkRepository) Find(ctx context.Context, slug string) (*model.Link, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	var link model.Link
	err := db.Where("short_url = ? AND "+liveCondition, slug, r.now().Unix()).Take(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &link, nil
}

// ResolveAndHit 单条语句完成计数加一并返回目标地址
func (r *linkRepository) ResolveAndHit(ctx context.Context, slug string) (string, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	rows, err := db.Raw(resolveSQL, slug, r.now().Unix()).Rows()
	if err != nil {
		return "", err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", err
		}
		return "", ErrNotFound
	}
	var longURL string
	if err := rows.Scan(&longURL); err != nil {
		return "", err
	}
	return longURL, rows.Err()
}

// Insert 新建记录，或者覆盖同名但已过期的记录（保留原 id）。返回写入的 expiry_time
func (r *linkRepository) Insert(ctx context.Context, slug, longURL string, expiryDelay int64) (int64, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	now := r.now().Unix()
	var expiryTime int64
	if expiryDelay > 0 {
		expiryTime = now + expiryDelay
	}

	result := db.Exec(upsertSQL, longURL, slug, expiryTime, now)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, ErrConflict
	}
	return expiryTime, nil
}

// Edit 只修改 long_url，可选清零 hits，不会动 short_url 和 expiry_time
func (r *linkRepository) Edit(ctx context.Context, slug, longURL string, resetHits bool) error {
	db, cancel := r.session(ctx)
	defer cancel()

	updates := map[string]interface{}{"long_url": longURL}
	if resetHits {
		updates["hits"] = 0
	}
	result := db.Model(&model.Link{}).
		Where("short_url = ? AND "+liveCondition, slug, r.now().Unix()).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete 不区分是否过期
func (r *linkRepository) Delete(ctx context.Context, slug string) error {
	db, cancel := r.session(ctx)
	defer cancel()

	result := db.Where("short_url = ?", slug).Delete(&model.Link{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List 按创建顺序返回有效记录，整个调用共用同一个 now
func (r *linkRepository) List(ctx context.Context, params ListParams) ([]model.Link, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	now := r.now().Unix()
	size := params.PageSize
	if size <= 0 {
		size = defaultPageSize
	}

	query := db.Model(&model.Link{}).Where(liveCondition, now).Order("id ASC")
	switch {
	case params.PageAfter != "":
		// 锚点不存在时子查询为 NULL，比较结果为空集
		query = query.Where("id > (SELECT id FROM urls WHERE short_url = ?)", params.PageAfter).Limit(size)
	case params.PageNo > 0:
		// 偏移量溢出时必然超出最后一页
		if params.PageNo-1 > math.MaxInt/size {
			return []model.Link{}, nil
		}
		query = query.Limit(size).Offset((params.PageNo - 1) * size)
	case params.PageSize > 0:
		query = query.Limit(size)
	}

	links := make([]model.Link, 0)
	if err := query.Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

// Sweep 物理删除 0 < expiry_time <= now 的记录，随后尝试 PRAGMA optimize
func (r *linkRepository) Sweep(ctx context.Context, now int64) (int64, error) {
	db, cancel := r.session(ctx)
	defer cancel()

	result := db.Where("expiry_time > 0 AND expiry_time <= ?", now).Delete(&model.Link{})
	if result.Error != nil {
		return 0, result.Error
	}
	if err := db.Exec("PRAGMA optimize").Error; err != nil {
		zap.L().Warn("PRAGMA optimize failed", zap.Error(err))
	}
	return result.RowsAffected, nil
}
