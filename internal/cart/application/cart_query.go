package application

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/storefront/internal/cart/domain"
)

// CartQueryService 处理购物车相关的查询操作
type CartQueryService struct {
	sessions *SessionRegistry
}

// NewCartQueryService 创建查询服务
func NewCartQueryService(sessions *SessionRegistry) *CartQueryService {
	return &CartQueryService{sessions: sessions}
}

// GetCart 获取购物车快照
func (q *CartQueryService) GetCart(ctx context.Context, sessionID string) (domain.CartState, error) {
	store, err := q.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.CartState{}, err
	}
	return store.Snapshot(), nil
}

// GetItemCount 购物车角标数量
func (q *CartQueryService) GetItemCount(ctx context.Context, sessionID string) (int, error) {
	state, err := q.GetCart(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return state.ItemCount(), nil
}

// GetTotal 购物车总金额
func (q *CartQueryService) GetTotal(ctx context.Context, sessionID string) (decimal.Decimal, error) {
	state, err := q.GetCart(ctx, sessionID)
	if err != nil {
		return decimal.Zero, err
	}
	return state.TotalAmount, nil
}

// Remaining 某商品还能加入的件数，为 0 时前端提示已达上限
func (q *CartQueryService) Remaining(ctx context.Context, sessionID string, itemID int64) (int, error) {
	state, err := q.GetCart(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return state.Remaining(itemID), nil
}

// CheckoutLines 结算用的条目列表，保持加入顺序
func (q *CartQueryService) CheckoutLines(ctx context.Context, sessionID string) ([]domain.LineItem, decimal.Decimal, error) {
	state, err := q.GetCart(ctx, sessionID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return state.Items, state.TotalAmount, nil
}
