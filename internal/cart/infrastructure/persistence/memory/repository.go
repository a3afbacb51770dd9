// Package memory 基于内存的购物车快照仓储，用于本地开发和测试
package memory

import (
	"context"
	"sync"

	"github.com/wyfcoding/storefront/internal/cart/domain"
)

// CartRepository 内存仓储
type CartRepository struct {
	mu    sync.RWMutex
	carts map[string]domain.CartState
}

// NewCartRepository 创建内存仓储
func NewCartRepository() *CartRepository {
	return &CartRepository{carts: make(map[string]domain.CartState)}
}

func (r *CartRepository) Load(_ context.Context, sessionID string) (*domain.CartState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.carts[sessionID]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	clone := state.Clone()
	return &clone, nil
}

func (r *CartRepository) Save(_ context.Context, sessionID string, state domain.CartState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[sessionID] = state.Clone()
	return nil
}

func (r *CartRepository) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, sessionID)
	return nil
}

func (r *CartRepository) Ping(context.Context) bool {
	return true
}
