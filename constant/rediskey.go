package constant

import "fmt"

const (
	BasePrefix = "chhoto:"
	Separator  = ":"
)

// Redis 键模板
const (
	PublicRateLimit = BasePrefix + "ratelimit" + Separator + "public" + Separator + "%s" // chhoto:ratelimit:public:<ip>
)

// SessionCookieName 登录会话 cookie 名，与前端约定一致
const SessionCookieName = "chhoto-url-auth"

// APIKeyHeader 携带 API key 的请求头
const APIKeyHeader = "X-API-Key"

// GetPublicRateLimitKey 生成公共模式限流键
func GetPublicRateLimitKey(clientIP string) string {
	return fmt.Sprintf(PublicRateLimit, clientIP)
}
