package utils

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	slugPattern          = regexp.MustCompile(`^[a-z0-9_-]+$`)
	slugPatternUppercase = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// IsValidSlug 校验短链标识是否只包含允许的字符
func IsValidSlug(slug string, allowUppercase bool) bool {
	if allowUppercase {
		return slugPatternUppercase.MatchString(slug)
	}
	return slugPattern.MatchString(slug)
}

// RegisterSlugValidation 在 validator 上注册 `slug` 规则，大小写策略由调用方决定
func RegisterSlugValidation(v *validator.Validate, allowUppercase bool) error {
	return v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return IsValidSlug(fl.Field().String(), allowUppercase)
	})
}
