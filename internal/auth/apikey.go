package auth

import (
	"unicode"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const apiKeyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const (
	generatedAPIKeyLength = 128
	minStrongAPIKeyLength = 32
)

// GenerateAPIKey 生成 128 位字母数字组成的随机 key
func GenerateAPIKey() (string, error) {
	return gonanoid.Generate(apiKeyAlphabet, generatedAPIKeyLength)
}

// IsStrongAPIKey 粗略判断 key 的强度：足够长并且混合了大小写字母和数字
func IsStrongAPIKey(key string) bool {
	if len(key) < minStrongAPIKeyLength {
		return false
	}
	var upper, lower, digit bool
	for _, r := range key {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}
