package core

import (
	"context"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/redis/go-redis/v9"
)

// DistributedSemaphore 分布式信号量，基于 Redis 实现
type DistributedSemaphore struct {
	redis      redis.UniversalClient
	key        string
	maxPermits int
	timeout    time.Duration
}

// NewDistributedSemaphore 创建分布式信号量
func NewDistributedSemaphore(redis redis.UniversalClient, key string, maxPermits int, timeout time.Duration) *DistributedSemaphore {
	return &DistributedSemaphore{
		redis:      redis,
		key:        key,
		maxPermits: maxPermits,
		timeout:    timeout,
	}
}

// TryAcquire 尝试获取信号量许可
func (s *DistributedSemaphore) TryAcquire() bool {
	ctx := context.Background()

	// 使用 Lua 脚本保证原子性
	script := `
		local key = KEYS[1]
		local max_permits = tonumber(ARGV[1])
		local timeout = tonumber(ARGV[2])

		local current = tonumber(redis.call('GET', key) or '0')

		if current < max_permits then
			redis.call('INCR', key)
			redis.call('EXPIRE', key, timeout)
			return 1
		else
			return 0
		end
	`

	result, err := s.redis.Eval(ctx, script, []string{s.key}, s.maxPermits, int(s.timeout.Seconds())).Int()
	if err != nil {
		return false
	}

	return result == 1
}

// Release 释放信号量许可
func (s *DistributedSemaphore) Release() {
	ctx := context.Background()

	// 使用 Lua 脚本保证原子性，避免减到负数
	script := `
		local key = KEYS[1]
		local current = tonumber(redis.call('GET', key) or '0')

		if current > 0 then
			redis.call('DECR', key)
			return 1
		else
			return 0
		end
	`

	s.redis.Eval(ctx, script, []string{s.key})
}

// GetCurrent 获取当前已使用的许可数
func (s *DistributedSemaphore) GetCurrent() int {
	ctx := context.Background()
	result, err := s.redis.Get(ctx, s.key).Int()
	if err != nil {
		return 0
	}
	return result
}

// SemaphoreManager 信号量管理器，统一管理所有分布式信号量
type SemaphoreManager struct {
	core *Core
	sems cmap.ConcurrentMap[string, *DistributedSemaphore]
}

// NewSemaphoreManager 创建信号量管理器
func NewSemaphoreManager(core *Core) *SemaphoreManager {
	return &SemaphoreManager{
		core: core,
		sems: cmap.New[*DistributedSemaphore](),
	}
}

// named 按名取信号量，首次访问时创建
func (m *SemaphoreManager) named(name string, maxPermits int) *DistributedSemaphore {
	if s, ok := m.sems.Get(name); ok {
		return s
	}

	m.sems.SetIfAbsent(name, NewDistributedSemaphore(
		m.core.Redis(),
		m.core.cfg.Redis.KeyPrefix+":semaphore:"+name,
		maxPermits,
		time.Minute*5, // 5分钟超时
	))
	s, _ := m.sems.Get(name)
	return s
}

// Replication 复制并发信号量。
// 跨实例限制同时执行的复制传输数量，避免打满次存储带宽
func (m *SemaphoreManager) Replication() *DistributedSemaphore {
	maxConcurrency := 10 // 默认值
	if m.core.cfg.Semaphore.Replication.MaxConcurrency > 0 {
		maxConcurrency = m.core.cfg.Semaphore.Replication.MaxConcurrency
	}
	return m.named("replication", maxConcurrency)
}
