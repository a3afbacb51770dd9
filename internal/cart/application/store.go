package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wyfcoding/storefront/internal/cart/domain"
	"github.com/wyfcoding/storefront/pkg/logger"
)

// CartStore 单个会话的购物车状态容器
// 变更串行执行，读取方只会看到完整的快照；每次生效的变更都交给 Mirror 异步持久化
type CartStore struct {
	mu        sync.RWMutex
	sessionID string
	state     domain.CartState
	mirror    *Mirror
}

// NewCartStore 创建状态容器，mirror 为 nil 时不持久化
func NewCartStore(sessionID string, initial domain.CartState, mirror *Mirror) *CartStore {
	if initial.Items == nil {
		initial.Items = []domain.LineItem{}
	}
	return &CartStore{sessionID: sessionID, state: initial.Clone(), mirror: mirror}
}

// RestoreCartStore 从待写快照或仓储恢复会话，不存在时返回空购物车
func RestoreCartStore(ctx context.Context, sessionID string, repo domain.CartRepository, mirror *Mirror) (*CartStore, error) {
	if mirror != nil {
		if state, ok := mirror.Pending(sessionID); ok {
			return NewCartStore(sessionID, state, mirror), nil
		}
	}

	state, err := repo.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return NewCartStore(sessionID, domain.EmptyCart(), mirror), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart %s: %w", sessionID, err)
	}

	restored, repaired := state.Normalize()
	store := NewCartStore(sessionID, restored, mirror)
	if repaired {
		logger.Warn(ctx, "Repaired persisted cart snapshot",
			"session_id", sessionID,
			"stored_total", state.TotalAmount.String(),
			"total", restored.TotalAmount.String())
		if mirror != nil {
			mirror.Enqueue(sessionID, restored.Clone())
		}
	}
	return store, nil
}

// SessionID 会话 ID
func (s *CartStore) SessionID() string {
	return s.sessionID
}

// Snapshot 当前快照的副本
func (s *CartStore) Snapshot() domain.CartState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// AddItem 加入商品
func (s *CartStore) AddItem(item domain.LineItem) (domain.CartState, domain.Change) {
	return s.apply(func(state domain.CartState) (domain.CartState, domain.Change) {
		return state.AddItem(item)
	})
}

// RemoveItem 移除商品
func (s *CartStore) RemoveItem(id int64) (domain.CartState, domain.Change) {
	return s.apply(func(state domain.CartState) (domain.CartState, domain.Change) {
		return state.RemoveItem(id)
	})
}

// UpdateQuantity 设置商品数量
func (s *CartStore) UpdateQuantity(id int64, quantity int) (domain.CartState, domain.Change) {
	return s.apply(func(state domain.CartState) (domain.CartState, domain.Change) {
		return state.UpdateQuantity(id, quantity)
	})
}

// ClearCart 清空购物车
func (s *CartStore) ClearCart() (domain.CartState, domain.Change) {
	return s.apply(domain.CartState.Clear)
}

func (s *CartStore) apply(op func(domain.CartState) (domain.CartState, domain.Change)) (domain.CartState, domain.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, change := op(s.state)
	if change.Changed() {
		s.state = next
		// 在锁内登记，保证镜像看到的顺序与变更顺序一致
		if s.mirror != nil {
			s.mirror.Enqueue(s.sessionID, next.Clone())
		}
	}
	return s.state.Clone(), change
}
