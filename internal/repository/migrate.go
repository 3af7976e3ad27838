package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/SinTan1729/chhoto-url/internal/model"
)

const schemaVersion = 1

// Migrate 幂等地把 urls 表升级到当前结构。
// 旧版本的库没有 expiry_time 列，补上后已有数据都视为永不过期
func Migrate(db *gorm.DB) error {
	m := db.Migrator()
	link := &model.Link{}

	if !m.HasTable(link) {
		if err := m.CreateTable(link); err != nil {
			return err
		}
	} else if !m.HasColumn(link, "ExpiryTime") {
		if err := m.AddColumn(link, "ExpiryTime"); err != nil {
			return err
		}
	}

	for _, index := range []string{"idx_short_url", "idx_expiry_time"} {
		if !m.HasIndex(link, index) {
			if err := m.CreateIndex(link, index); err != nil {
				return err
			}
		}
	}

	return db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)).Error
}

// SchemaVersion 读取库文件记录的结构版本
func SchemaVersion(db *gorm.DB) (int, error) {
	var version int
	err := db.Raw("PRAGMA user_version").Scan(&version).Error
	return version, err
}
