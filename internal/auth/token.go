package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const tokenTag = "chhoto-url-auth"

// SessionMaxAge 会话有效期 14 天
const SessionMaxAge = 14 * 24 * time.Hour

var ErrInvalidToken = errors.New("invalid session token")

// SessionToken 只记录签发时间，不落库，登出只清除 cookie
type SessionToken struct {
	IssuedAt time.Time
}

// ValidAt now < IssuedAt + maxAge 时有效
func (t SessionToken) ValidAt(now time.Time, maxAge time.Duration) bool {
	return now.Before(t.IssuedAt.Add(maxAge))
}

// TokenSigner 用 HMAC 对 cookie 签名，密钥只存在于进程内存中，重启后所有会话失效
type TokenSigner struct {
	key []byte
}

func NewTokenSigner(key []byte) *TokenSigner {
	return &TokenSigner{key: key}
}

func NewRandomTokenSigner() (*TokenSigner, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}
	return NewTokenSigner(key), nil
}

func (s *TokenSigner) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(payload)
	return mac.Sum(nil)
}

// Encode 生成 cookie 值：base64url(tag;unix) + "." + base64url(hmac)
func (s *TokenSigner) Encode(t SessionToken) string {
	payload := []byte(tokenTag + ";" + strconv.FormatInt(t.IssuedAt.Unix(), 10))
	return base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString(s.sign(payload))
}

// Parse 校验签名和标签后还原 token，不检查是否过期
func (s *TokenSigner) Parse(value string) (SessionToken, error) {
	encodedPayload, encodedMAC, ok := strings.Cut(value, ".")
	if !ok {
		return SessionToken{}, ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(encodedPayload)
	if err != nil {
		return SessionToken{}, ErrInvalidToken
	}
	mac, err := base64.RawURLEncoding.DecodeString(encodedMAC)
	if err != nil || !hmac.Equal(mac, s.sign(payload)) {
		return SessionToken{}, ErrInvalidToken
	}

	tag, issued, ok := strings.Cut(string(payload), ";")
	if !ok || tag != tokenTag {
		return SessionToken{}, ErrInvalidToken
	}
	unix, err := strconv.ParseInt(issued, 10, 64)
	if err != nil {
		return SessionToken{}, ErrInvalidToken
	}
	return SessionToken{IssuedAt: time.Unix(unix, 0)}, nil
}
