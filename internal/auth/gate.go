package auth

import (
	"time"

	"go.uber.org/zap"

	"github.com/SinTan1729/chhoto-url/internal/config"
)

type Role int

const (
	RoleDenied Role = iota
	RolePublic
	RoleAdmin
)

// String 与 /api/whoami 的返回值一致
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RolePublic:
		return "public"
	default:
		return "nobody"
	}
}

// Credentials 从请求中提取出的凭据
type Credentials struct {
	APIKey        string
	HasAPIKey     bool
	SessionCookie string
}

// Decision 鉴权结果。Role 为 RoleDenied 时 MessageID/Reason 说明原因
type Decision struct {
	Role      Role
	MessageID string
	Reason    string
}

type Gate struct {
	cfg        config.AuthConfig
	publicMode bool
	signer     *TokenSigner
	now        func() time.Time
	logger     *zap.Logger
}

func NewGate(cfg config.AuthConfig, publicMode bool, signer *TokenSigner, now func() time.Time, logger *zap.Logger) *Gate {
	if now == nil {
		now = time.Now
	}
	if cfg.SessionMaxAge <= 0 {
		cfg.SessionMaxAge = SessionMaxAge
	}
	return &Gate{cfg: cfg, publicMode: publicMode, signer: signer, now: now, logger: logger}
}

// Authorize 先看 X-API-Key，没有时再看会话，最后才考虑公共模式
func (g *Gate) Authorize(creds Credentials) Decision {
	if creds.HasAPIKey {
		if !g.cfg.APIKeySet {
			g.logger.Warn("API key was provided but no api_key is configured")
			return Decision{
				Role:      RoleDenied,
				MessageID: "api_key_not_configured",
				Reason:    "An API key was provided, but the 'api_key' environment variable is not configured in the Chhoto URL instance",
			}
		}
		if g.verify(g.cfg.APIKey, creds.APIKey, "api key") {
			g.logger.Debug("Server accessed with API key")
			return Decision{Role: RoleAdmin}
		}
		g.logger.Warn("Incorrect API key was provided")
		return Decision{Role: RoleDenied, MessageID: "incorrect_api_key", Reason: "Incorrect API key"}
	}

	if g.SessionValid(creds.SessionCookie) {
		return Decision{Role: RoleAdmin}
	}
	if g.publicMode {
		return Decision{Role: RolePublic}
	}
	return Decision{Role: RoleDenied, MessageID: "not_logged_in", Reason: "Not logged in!"}
}

// SessionValid 未配置密码时任何人都视为已登录
func (g *Gate) SessionValid(cookie string) bool {
	if !g.cfg.PasswordSet {
		return true
	}
	if cookie == "" {
		return false
	}
	token, err := g.signer.Parse(cookie)
	if err != nil {
		return false
	}
	return token.ValidAt(g.now(), g.cfg.SessionMaxAge)
}

// CheckPassword 未配置密码时总是通过
func (g *Gate) CheckPassword(supplied string) bool {
	if !g.cfg.PasswordSet {
		return true
	}
	return g.verify(g.cfg.Password, supplied, "password")
}

// IssueSession 返回新会话的 cookie 值
func (g *Gate) IssueSession() string {
	return g.signer.Encode(SessionToken{IssuedAt: g.now()})
}

func (g *Gate) SessionMaxAge() time.Duration {
	return g.cfg.SessionMaxAge
}

func (g *Gate) verify(configured, supplied, what string) bool {
	ok, err := verifySecret(configured, supplied, g.cfg.HashArgon2)
	if err != nil {
		g.logger.Error("Configured hash is invalid", zap.String("secret", what), zap.Error(err))
		return false
	}
	return ok
}
