// Package redis 基于 Redis 的购物车快照仓储，快照以 JSON 存储并带有过期时间
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wyfcoding/storefront/internal/cart/domain"
)

const (
	DefaultPrefix = "cart:"
	DefaultTTL    = 30 * 24 * time.Hour
)

// CartRedisRepository Redis 仓储
type CartRedisRepository struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewCartRedisRepository 创建 Redis 仓储，ttl 为 0 时使用默认值
func NewCartRedisRepository(client redis.UniversalClient, prefix string, ttl time.Duration) *CartRedisRepository {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CartRedisRepository{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *CartRedisRepository) Load(ctx context.Context, sessionID string) (*domain.CartState, error) {
	data, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart from redis: %w", err)
	}
	var state domain.CartState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart: %w", err)
	}
	return &state, nil
}

// Save 写入快照并刷新过期时间
func (r *CartRedisRepository) Save(ctx context.Context, sessionID string, state domain.CartState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal cart: %w", err)
	}
	if err := r.client.Set(ctx, r.key(sessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save cart to redis: %w", err)
	}
	return nil
}

func (r *CartRedisRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete cart from redis: %w", err)
	}
	return nil
}

func (r *CartRedisRepository) Ping(ctx context.Context) bool {
	return r.client.Ping(ctx).Err() == nil
}

func (r *CartRedisRepository) key(sessionID string) string {
	return r.prefix + sessionID
}
