package repository

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/SinTan1729/chhoto-url/internal/config"
	"github.com/SinTan1729/chhoto-url/pkg/logging"
)

// 通过 DSN 设置，连接池新建的每个连接都会执行。
// WAL 允许读写并发，busy_timeout 让写锁竞争时等待而不是立刻失败
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"busy_timeout(5000)",
	"temp_store(MEMORY)",
	"journal_size_limit(8388608)",
	"mmap_size(16777216)",
}

// sqliteDSN 在文件路径后追加 _pragma 参数
func sqliteDSN(path string) string {
	params := make([]string, 0, len(sqlitePragmas))
	for _, pragma := range sqlitePragmas {
		params = append(params, "_pragma="+pragma)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&")
}

// OpenDB 打开 SQLite 数据库并完成表结构迁移
func OpenDB(cfg config.DBConfig, logger *zap.Logger, level zap.AtomicLevel) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(sqliteDSN(cfg.Path)), &gorm.Config{
		Logger: logging.NewGormLogger(logger, logging.ToGormLogLevel(level.Level())),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// 单连接串行化写入
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	logger.Info("Database ready", zap.String("path", cfg.Path))
	return db, nil
}

// CloseDB 关闭前做一次 checkpoint，把 WAL 合并回主库文件
func CloseDB(db *gorm.DB) error {
	if err := db.Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error; err != nil {
		zap.L().Warn("WAL checkpoint failed", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
