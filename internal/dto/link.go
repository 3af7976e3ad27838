package dto

// NewLinkRequest POST /api/new 的请求体。shortlink 为空时由服务端生成
type NewLinkRequest struct {
	ShortLink   string `json:"shortlink" validate:"omitempty,slug"`
	LongLink    string `json:"longlink" validate:"required"`
	ExpiryDelay int64  `json:"expiry_delay"`
}

// EditLinkRequest PUT /api/edit 的请求体，reset_hits 必须显式给出
type EditLinkRequest struct {
	ShortLink string `json:"shortlink" validate:"required,slug"`
	LongLink  string `json:"longlink" validate:"required"`
	ResetHits *bool  `json:"reset_hits" validate:"required"`
}

// ListLinksQuery GET /api/all 的查询参数，非正数视为未提供
type ListLinksQuery struct {
	PageAfter string `form:"page_after"`
	PageNo    int    `form:"page_no"`
	PageSize  int    `form:"page_size"`
}

// LinkView 列表中的单条记录
type LinkView struct {
	ShortLink  string `json:"shortlink"`
	LongLink   string `json:"longlink"`
	Hits       int64  `json:"hits"`
	ExpiryTime int64  `json:"expiry_time"`
}

// BackendConfig GET /api/getconfig 返回给前端的配置，不包含任何凭据
type BackendConfig struct {
	Version               string  `json:"version"`
	SiteURL               *string `json:"site_url"`
	AllowCapitalLetters   bool    `json:"allow_capital_letters"`
	PublicMode            bool    `json:"public_mode"`
	PublicModeExpiryDelay int64   `json:"public_mode_expiry_delay"`
	SlugStyle             string  `json:"slug_style"`
	SlugLength            int     `json:"slug_length"`
	TryLongerSlug         bool    `json:"try_longer_slug"`
}
