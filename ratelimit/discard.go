package ratelimit

import "context"

// discardLimiter 是一个始终放行的空操作限流器
// 用于 Limiter 未配置时的降级场景，避免因限流组件故障影响主业务
type discardLimiter struct{}

// Discard 返回一个始终允许请求的空操作限流器
func Discard() Limiter {
	return discardLimiter{}
}

func (discardLimiter) Allow(ctx context.Context, key string, limit Limit) (bool, error) {
	return true, nil
}

func (discardLimiter) AllowN(ctx context.Context, key string, limit Limit, n int) (bool, error) {
	return true, nil
}

func (discardLimiter) Wait(ctx context.Context, key string, limit Limit) error {
	return nil
}

func (discardLimiter) Close() error {
	return nil
}
