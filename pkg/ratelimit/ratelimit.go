// Package ratelimit 提供按 key 限流的实现，支持 Redis（GCRA）与进程内令牌桶
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RateLimiter 限流器接口
type RateLimiter interface {
	// Allow 检查 key 在给定规则下是否放行
	Allow(ctx context.Context, key string, limit Limit) (*Result, error)
}

// Limit 限流规则：每个 Period 允许 Rate 次，突发容量 Burst
type Limit struct {
	Rate   int
	Period time.Duration
	Burst  int
}

// Result 限流检查结果
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAfter time.Duration
	RetryAfter time.Duration
}

// RedisRateLimiter 基于 Redis 的分布式限流器
type RedisRateLimiter struct {
	limiter *redis_rate.Limiter
}

// NewRedisRateLimiter 创建 Redis 限流器
func NewRedisRateLimiter(rdb redis.UniversalClient) *RedisRateLimiter {
	return &RedisRateLimiter{
		limiter: redis_rate.NewLimiter(rdb),
	}
}

func (r *RedisRateLimiter) Allow(ctx context.Context, key string, limit Limit) (*Result, error) {
	res, err := r.limiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   limit.Rate,
		Period: limit.Period,
		Burst:  limit.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Remaining:  res.Remaining,
		ResetAfter: res.ResetAfter,
		RetryAfter: res.RetryAfter,
	}, nil
}

// DefaultPruneInterval 清理已回满令牌桶的最小间隔
const DefaultPruneInterval = time.Minute

// LocalRateLimiter 进程内令牌桶限流器，每个 key 一个桶
// 已回满的桶与新建桶等价，会被定期清理
type LocalRateLimiter struct {
	mu            sync.Mutex
	buckets       map[string]*bucket
	now           func() time.Time
	pruneInterval time.Duration
	lastPrune     time.Time
}

type bucket struct {
	tokens     float64
	burst      float64
	refillRate float64
	lastRefill time.Time
}

// NewLocalRateLimiter 创建进程内限流器
func NewLocalRateLimiter() *LocalRateLimiter {
	return &LocalRateLimiter{
		buckets:       make(map[string]*bucket),
		now:           time.Now,
		pruneInterval: DefaultPruneInterval,
	}
}

func (l *LocalRateLimiter) Allow(_ context.Context, key string, limit Limit) (*Result, error) {
	if limit.Rate <= 0 || limit.Period <= 0 {
		return nil, fmt.Errorf("invalid limit: %d per %s", limit.Rate, limit.Period)
	}
	burst := float64(limit.Burst)
	if burst < 1 {
		burst = float64(limit.Rate)
	}
	// 每秒补充的令牌数
	refillRate := float64(limit.Rate) / limit.Period.Seconds()

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: burst, lastRefill: now}
		l.buckets[key] = b
	}
	b.burst = burst
	b.refillRate = refillRate
	b.refill(now)

	resetAfter := secondsToDuration((burst - b.tokens) / refillRate)
	if b.tokens >= 1 {
		b.tokens--
		return &Result{
			Allowed:    true,
			Remaining:  int(b.tokens),
			ResetAfter: secondsToDuration((burst - b.tokens) / refillRate),
			RetryAfter: -1,
		}, nil
	}

	return &Result{
		Allowed:    false,
		Remaining:  0,
		ResetAfter: resetAfter,
		RetryAfter: secondsToDuration((1 - b.tokens) / refillRate),
	}, nil
}

// Len 当前持有的令牌桶数量
func (l *LocalRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// pruneLocked 删除已回满的桶，调用方需持有 mu
func (l *LocalRateLimiter) pruneLocked(now time.Time) {
	if now.Sub(l.lastPrune) < l.pruneInterval {
		return
	}
	l.lastPrune = now
	for key, b := range l.buckets {
		b.refill(now)
		if b.tokens >= b.burst {
			delete(l.buckets, key)
		}
	}
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(b.burst, b.tokens+elapsed*b.refillRate)
	}
	b.lastRefill = now
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
