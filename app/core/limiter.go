package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type LimitConfig struct {
	Limit int
	Every time.Duration
}

type LimitOption func(l *LimitConfig)

func WithLimit(limit int) LimitOption {
	return func(l *LimitConfig) {
		l.Limit = limit
	}
}

func WithRange(r time.Duration) LimitOption {
	return func(l *LimitConfig) {
		l.Every = r
	}
}

type Limiter interface {
	Allow() bool
}

type redisLimiter struct {
	core *Core
	key  string
	cfg  LimitConfig
}

// Allow 固定窗口计数，窗口内超过配额则拒绝。
// redis 不可用时放行，限流不能成为单点
func (l *redisLimiter) Allow() bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	window := time.Now().Unix() / int64(l.cfg.Every.Seconds())
	key := fmt.Sprintf("%s:limit:%s:%d", l.core.cfg.Redis.KeyPrefix, l.key, window)

	count, err := l.core.Redis().Incr(ctx, key).Result()
	if err != nil {
		slog.Error("rate limiter unavailable", slog.String("key", l.key), slog.String("error", err.Error()))
		return true
	}
	if count == 1 {
		l.core.Redis().Expire(ctx, key, l.cfg.Every)
	}
	return count <= int64(l.cfg.Limit)
}

// UseLimiter 按 key 限流，默认每分钟 60 次
func (s *Core) UseLimiter(key string, opts ...LimitOption) Limiter {
	cfg := LimitConfig{
		Limit: 60,
		Every: time.Minute,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &redisLimiter{
		core: s,
		key:  key,
		cfg:  cfg,
	}
}
