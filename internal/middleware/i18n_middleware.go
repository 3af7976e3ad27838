package middleware

import (
	"slices"

	"github.com/gin-gonic/gin"
	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/SinTan1729/chhoto-url/internal/i18n"
)

func I18nMiddleware(bundle *goi18n.Bundle, supported []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tags, _, _ := language.ParseAcceptLanguage(c.GetHeader("Accept-Language"))
		lang := "en" // 默认语言
		for _, tag := range tags {
			base, _ := tag.Base()
			if slices.Contains(supported, tag.String()) {
				lang = tag.String()
				break
			}
			if slices.Contains(supported, base.String()) {
				lang = base.String()
				break
			}
		}

		localizer := goi18n.NewLocalizer(bundle, lang)
		c.Request = c.Request.WithContext(i18n.WithLocalizer(c.Request.Context(), localizer))
		c.Next()
	}
}
