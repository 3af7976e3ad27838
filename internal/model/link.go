package model

// Link 对应 urls 表的一行。ExpiryTime 为 0 表示永不过期，否则为 Unix 秒
type Link struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	LongURL    string `gorm:"column:long_url;not null" json:"longlink"`
	ShortURL   string `gorm:"column:short_url;not null;uniqueIndex:idx_short_url" json:"shortlink"`
	Hits       int64  `gorm:"column:hits;not null;default:0" json:"hits"`
	ExpiryTime int64  `gorm:"column:expiry_time;not null;default:0;index:idx_expiry_time" json:"expiry_time"`
}

func (Link) TableName() string {
	return "urls"
}

// LiveAt 判断链接在 now 时刻是否仍然有效
func (l *Link) LiveAt(now int64) bool {
	return l.ExpiryTime == 0 || l.ExpiryTime > now
}
