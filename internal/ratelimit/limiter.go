package ratelimit

import "context"

// Limiter 判断某个客户端当前是否还能继续提交。
// 返回 error 表示后端不可用，由调用方决定放行还是拒绝
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Unlimited 关闭限流时使用
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (bool, error) {
	return true, nil
}
