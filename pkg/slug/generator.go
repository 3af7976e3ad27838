package slug

import (
	"fmt"
	"math/rand"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Style 短链生成策略
type Style int

const (
	// StylePair 形容词-名词组合，例如 "nifty-turing"
	StylePair Style = iota
	// StyleUID 指定长度的随机 ID
	StyleUID
)

// RetryLengthIncrement 生成的 UID 冲突后重试时增加的长度
const RetryLengthIncrement = 4

const (
	lowercaseAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	// 去掉了容易混淆的 I、O、l、0
	mixedCaseAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz123456789"
)

func (s Style) String() string {
	switch s {
	case StyleUID:
		return "UID"
	default:
		return "Pair"
	}
}

// ParseStyle 解析配置中的策略名称，大小写不敏感
func ParseStyle(name string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "pair":
		return StylePair, nil
	case "uid":
		return StyleUID, nil
	default:
		return StylePair, fmt.Errorf("unknown slug style %q", name)
	}
}

// Generate 按策略生成候选短链。结果总是满足 utils.IsValidSlug，
// 但不做冲突检测，冲突只能由存储层判断。
func Generate(style Style, length int, allowUppercase bool) string {
	if style == StyleUID {
		return randomID(length, allowUppercase)
	}
	return wordPair()
}

func randomID(length int, allowUppercase bool) string {
	if length < 1 {
		length = 1
	}
	alphabet := lowercaseAlphabet
	if allowUppercase {
		alphabet = mixedCaseAlphabet
	}
	return gonanoid.MustGenerate(alphabet, length)
}

func wordPair() string {
	return adjectives[rand.Intn(len(adjectives))] + "-" + nouns[rand.Intn(len(nouns))]
}
