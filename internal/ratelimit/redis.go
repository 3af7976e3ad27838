package ratelimit

import (
	"context"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/SinTan1729/chhoto-url/constant"
)

// 计数和设置过期在同一个脚本里完成；没有 TTL 的旧键也会补上过期时间，避免永久封禁
var incrWindowScript = redis.NewScript(1, `
local n = redis.call('INCR', KEYS[1])
if redis.call('TTL', KEYS[1]) < 0 then
	redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// RedisLimiter 固定窗口计数，多个实例共用同一个 Redis 时限额是全局的
type RedisLimiter struct {
	pool   *redis.Pool
	limit  int
	window time.Duration
}

func NewRedisLimiter(pool *redis.Pool, perMinute int) *RedisLimiter {
	return &RedisLimiter{pool: pool, limit: perMinute, window: time.Minute}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}

	conn, err := l.pool.GetContext(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	redisKey := constant.GetPublicRateLimitKey(key)
	count, err := redis.Int(incrWindowScript.Do(conn, redisKey, int(l.window.Seconds())))
	if err != nil {
		return false, err
	}
	return count <= l.limit, nil
}
