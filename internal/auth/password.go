package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var ErrInvalidHash = errors.New("invalid argon2 hash")

type argon2Params struct {
	variant string
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	hash    []byte
}

// parsePHC 解析 $argon2id$v=19$m=19456,t=2,p=1$<salt>$<hash>
func parsePHC(encoded string) (*argon2Params, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, ErrInvalidHash
	}
	p := &argon2Params{variant: parts[1]}
	if p.variant != "argon2id" && p.variant != "argon2i" {
		return nil, fmt.Errorf("%w: unsupported variant %q", ErrInvalidHash, p.variant)
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrInvalidHash, parts[2])
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, fmt.Errorf("%w: salt: %v", ErrInvalidHash, err)
	}
	if p.hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(p.hash) == 0 {
		return nil, fmt.Errorf("%w: hash", ErrInvalidHash)
	}
	return p, nil
}

// VerifyArgon2 校验明文是否匹配 PHC 格式的 argon2 哈希
func VerifyArgon2(encoded, plain string) (bool, error) {
	p, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	keyLen := uint32(len(p.hash))
	var derived []byte
	if p.variant == "argon2id" {
		derived = argon2.IDKey([]byte(plain), p.salt, p.time, p.memory, p.threads, keyLen)
	} else {
		derived = argon2.Key([]byte(plain), p.salt, p.time, p.memory, p.threads, keyLen)
	}
	return subtle.ConstantTimeCompare(derived, p.hash) == 1, nil
}

// EncodeArgon2 生成 argon2id 的 PHC 字符串，用于生成配置里的哈希
func EncodeArgon2(plain string, salt []byte) string {
	const (
		memory  = 19 * 1024
		time    = 2
		threads = 1
		keyLen  = 32
	)
	hash := argon2.IDKey([]byte(plain), salt, time, memory, threads, keyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memory, time, threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
}

// verifySecret 按配置比较明文或哈希，比较过程是常量时间的
func verifySecret(configured, supplied string, hashed bool) (bool, error) {
	if hashed {
		return VerifyArgon2(configured, supplied)
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(supplied)) == 1, nil
}
