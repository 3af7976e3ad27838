package i18n

import (
	"context"
	"embed"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.toml
var localeFS embed.FS

type localizerKey struct{}

// NewBundle 加载内嵌的语言文件，返回 bundle 以及支持的语言列表
func NewBundle(defaultLang string) (*i18n.Bundle, []string, error) {
	bundle := i18n.NewBundle(language.MustParse(defaultLang))
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, nil, err
	}

	supported := make([]string, 0, len(entries))
	for _, entry := range entries {
		filePath := path.Join("locales", entry.Name())
		data, err := localeFS.ReadFile(filePath)
		if err != nil {
			return nil, nil, err
		}
		if _, err := bundle.ParseMessageFileBytes(data, filePath); err != nil {
			return nil, nil, err
		}
		// en.toml -> "en"
		supported = append(supported, strings.TrimSuffix(entry.Name(), path.Ext(entry.Name())))
	}
	return bundle, supported, nil
}

// WithLocalizer 把 localizer 放入请求上下文
func WithLocalizer(ctx context.Context, localizer *i18n.Localizer) context.Context {
	return context.WithValue(ctx, localizerKey{}, localizer)
}

// T 翻译 messageID，找不到 localizer 或译文时返回 fallback
func T(ctx context.Context, messageID, fallback string, data map[string]interface{}) string {
	localizer, ok := ctx.Value(localizerKey{}).(*i18n.Localizer)
	if !ok || localizer == nil || messageID == "" {
		return fallback
	}
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil || msg == "" {
		return fallback
	}
	return msg
}
