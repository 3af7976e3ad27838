package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/SinTan1729/chhoto-url/pkg/slug"
)

// Config 启动时构造一次，之后只读传递给各组件
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Log       LogConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Link      LinkConfig
	RateLimit RateLimitConfig
	Cleanup   CleanupConfig
}

type ServerConfig struct {
	Port               int
	SiteURL            string
	SiteURLConfigured  bool
	CacheControlHeader string
	UseTempRedirect    bool
	AllowedOrigins     []string
	// 为空时不信任任何代理，客户端 IP 只取连接地址
	TrustedProxies     []string
}

type DBConfig struct {
	Path         string
	QueryTimeout time.Duration
}

type LogConfig struct {
	Level      string
	Path       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

type RedisConfig struct {
	Addr     string
	Password string
}

type AuthConfig struct {
	Password      string
	APIKey        string
	HashArgon2    bool
	PasswordSet   bool
	APIKeySet     bool
	SessionMaxAge time.Duration
}

// LinkConfig 是 LinkService 唯一关心的配置
type LinkConfig struct {
	SlugStyle             slug.Style
	SlugLength            int
	TryLongerSlug         bool
	AllowCapitalLetters   bool
	PublicMode            bool
	PublicModeExpiryDelay int64
}

type RateLimitConfig struct {
	PublicPerMinute int
	PublicBurst     int
}

type CleanupConfig struct {
	Schedule string
}

const (
	defaultSlugLength = 8
	minSlugLength     = 4
)

// 原服务使用的环境变量名，保持兼容
var envBindings = map[string][]string{
	"server.port":                   {"port", "PORT"},
	"server.site_url":               {"site_url", "SITE_URL"},
	"server.cache_control_header":   {"cache_control_header", "CACHE_CONTROL_HEADER"},
	"server.redirect_method":        {"redirect_method", "REDIRECT_METHOD"},
	"server.allowed_origins":        {"allowed_origins", "ALLOWED_ORIGINS"},
	"server.trusted_proxies":        {"trusted_proxies", "TRUSTED_PROXIES"},
	"db.path":                       {"db_url", "DB_URL"},
	"db.query_timeout":              {"db_query_timeout", "DB_QUERY_TIMEOUT"},
	"log.level":                     {"log_level", "LOG_LEVEL"},
	"log.path":                      {"log_path", "LOG_PATH"},
	"redis.addr":                    {"redis_addr", "REDIS_ADDR"},
	"redis.password":                {"redis_password", "REDIS_PASSWORD"},
	"auth.password":                 {"password", "PASSWORD"},
	"auth.api_key":                  {"api_key", "API_KEY"},
	"auth.hash_algorithm":           {"hash_algorithm", "HASH_ALGORITHM"},
	"link.slug_style":               {"slug_style", "SLUG_STYLE"},
	"link.slug_length":              {"slug_length", "SLUG_LENGTH"},
	"link.try_longer_slug":          {"try_longer_slug", "TRY_LONGER_SLUG"},
	"link.allow_capital_letters":    {"allow_capital_letters", "ALLOW_CAPITAL_LETTERS"},
	"link.public_mode":              {"public_mode", "PUBLIC_MODE"},
	"link.public_mode_expiry_delay": {"public_mode_expiry_delay", "PUBLIC_MODE_EXPIRY_DELAY"},
	"ratelimit.public_per_minute":   {"public_rate_limit", "PUBLIC_RATE_LIMIT"},
	"cleanup.schedule":              {"cleanup_schedule", "CLEANUP_SCHEDULE"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 4567)
	v.SetDefault("server.redirect_method", "PERMANENT")
	v.SetDefault("db.path", "urls.sqlite")
	v.SetDefault("db.query_timeout", "5s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", "logs/chhoto-url.log")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 7)
	v.SetDefault("log.compress", false)
	v.SetDefault("link.slug_style", "Pair")
	v.SetDefault("link.slug_length", defaultSlugLength)
	v.SetDefault("link.public_mode_expiry_delay", 0)
	v.SetDefault("ratelimit.public_per_minute", 30)
	v.SetDefault("ratelimit.public_burst", 10)
	v.SetDefault("cleanup.schedule", "@every 1h")
}

// NewFlagSet 返回 Load 能识别的命令行参数
func NewFlagSet(name string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.String("config", "", "path to config file (yaml)")
	flags.Int("port", 0, "listening port")
	flags.String("db", "", "path to the SQLite database file")
	return flags
}

// Load 按 默认值 → 配置文件 → 环境变量 → 命令行参数 的顺序合并配置
func Load(flags *pflag.FlagSet) (*Config, []string, error) {
	v := viper.New()
	setDefaults(v)

	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, nil, err
		}
	}

	var configPath string
	if flags != nil {
		configPath, _ = flags.GetString("config")
		if f := flags.Lookup("port"); f != nil && f.Changed {
			if err := v.BindPFlag("server.port", f); err != nil {
				return nil, nil, err
			}
		}
		if f := flags.Lookup("db"); f != nil && f.Changed {
			if err := v.BindPFlag("db.path", f); err != nil {
				return nil, nil, err
			}
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return fromViper(v)
}

// fromViper 把松散的键值转换成强类型配置，并返回需要在启动时打印的提示
func fromViper(v *viper.Viper) (*Config, []string, error) {
	var notes []string
	cfg := &Config{}

	cfg.Server.Port = v.GetInt("server.port")
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, nil, fmt.Errorf("invalid port %d", cfg.Server.Port)
	}
	cfg.Server.CacheControlHeader = strings.TrimSpace(v.GetString("server.cache_control_header"))
	cfg.Server.UseTempRedirect = strings.EqualFold(strings.TrimSpace(v.GetString("server.redirect_method")), "TEMPORARY")
	cfg.Server.AllowedOrigins = splitList(strings.Join(v.GetStringSlice("server.allowed_origins"), ","))
	cfg.Server.TrustedProxies = splitList(strings.Join(v.GetStringSlice("server.trusted_proxies"), ","))

	siteURL := strings.TrimSpace(v.GetString("server.site_url"))
	if siteURL != "" {
		if unquoted, ok := unquote(siteURL); ok {
			notes = append(notes, "site_url is wrapped in quotes, using "+unquoted)
			siteURL = unquoted
		}
		cfg.Server.SiteURL = strings.TrimRight(siteURL, "/")
		cfg.Server.SiteURLConfigured = true
	} else {
		cfg.Server.SiteURL = defaultSiteURL(cfg.Server.Port)
		notes = append(notes, "site_url is not configured, using "+cfg.Server.SiteURL)
	}

	cfg.DB.Path = strings.TrimSpace(v.GetString("db.path"))
	if cfg.DB.Path == "" {
		cfg.DB.Path = "urls.sqlite"
	}
	cfg.DB.QueryTimeout = v.GetDuration("db.query_timeout")
	if cfg.DB.QueryTimeout <= 0 {
		cfg.DB.QueryTimeout = 5 * time.Second
	}

	cfg.Log = LogConfig{
		Level:      v.GetString("log.level"),
		Path:       v.GetString("log.path"),
		MaxSize:    v.GetInt("log.max_size"),
		MaxBackups: v.GetInt("log.max_backups"),
		MaxAge:     v.GetInt("log.max_age"),
		Compress:   v.GetBool("log.compress"),
	}

	cfg.Redis = RedisConfig{
		Addr:     strings.TrimSpace(v.GetString("redis.addr")),
		Password: v.GetString("redis.password"),
	}

	cfg.Auth.Password = v.GetString("auth.password")
	cfg.Auth.PasswordSet = strings.TrimSpace(cfg.Auth.Password) != ""
	cfg.Auth.APIKey = v.GetString("auth.api_key")
	cfg.Auth.APIKeySet = cfg.Auth.APIKey != ""
	cfg.Auth.HashArgon2 = v.GetString("auth.hash_algorithm") == "Argon2"
	cfg.Auth.SessionMaxAge = 14 * 24 * time.Hour
	if !cfg.Auth.PasswordSet {
		notes = append(notes, "no password was provided, the API will be accessible to the public")
	}

	style, err := slug.ParseStyle(v.GetString("link.slug_style"))
	if err != nil {
		return nil, nil, err
	}
	cfg.Link.SlugStyle = style
	cfg.Link.SlugLength = v.GetInt("link.slug_length")
	if cfg.Link.SlugLength < minSlugLength {
		notes = append(notes, fmt.Sprintf("slug_length must be at least %d, using %d", minSlugLength, defaultSlugLength))
		cfg.Link.SlugLength = defaultSlugLength
	}
	cfg.Link.TryLongerSlug = enabled(v.GetString("link.try_longer_slug"))
	cfg.Link.AllowCapitalLetters = enabled(v.GetString("link.allow_capital_letters"))
	cfg.Link.PublicMode = enabled(v.GetString("link.public_mode"))
	cfg.Link.PublicModeExpiryDelay = v.GetInt64("link.public_mode_expiry_delay")
	if cfg.Link.PublicModeExpiryDelay < 0 {
		cfg.Link.PublicModeExpiryDelay = 0
	}

	cfg.RateLimit = RateLimitConfig{
		PublicPerMinute: v.GetInt("ratelimit.public_per_minute"),
		PublicBurst:     v.GetInt("ratelimit.public_burst"),
	}

	cfg.Cleanup.Schedule = strings.TrimSpace(v.GetString("cleanup.schedule"))
	if cfg.Cleanup.Schedule == "" {
		cfg.Cleanup.Schedule = "@every 1h"
	}

	return cfg, notes, nil
}

// enabled 兼容原服务的 "Enable" / "True" 写法和 yaml 布尔值
func enabled(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "enable", "enabled", "true", "yes", "1", "on":
		return true
	}
	return false
}

func unquote(s string) (string, bool) {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], true
	}
	return s, false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultSiteURL(port int) string {
	protocol := "http"
	if port == 443 {
		protocol = "https"
	}
	if port == 80 || port == 443 {
		return protocol + "://localhost"
	}
	return fmt.Sprintf("%s://localhost:%d", protocol, port)
}
