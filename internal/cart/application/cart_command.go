package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/storefront/internal/cart/domain"
	"github.com/wyfcoding/storefront/pkg/logger"
)

// AddItemCommand 加入购物车命令
type AddItemCommand struct {
	SessionID string
	ItemID    int64
	Name      string
	Price     decimal.Decimal
	Quantity  int
	ImageURL  string
}

// RemoveItemCommand 移除商品命令
type RemoveItemCommand struct {
	SessionID string
	ItemID    int64
}

// UpdateQuantityCommand 修改数量命令
type UpdateQuantityCommand struct {
	SessionID string
	ItemID    int64
	Quantity  int
}

// ClearCartCommand 清空购物车命令
type ClearCartCommand struct {
	SessionID string
}

// CartResult 命令执行结果
type CartResult struct {
	Change domain.Change
	Cart   domain.CartState
}

// CartCommandService 处理购物车相关的命令操作
type CartCommandService struct {
	sessions  *SessionRegistry
	publisher domain.EventPublisher
	recorder  MetricsRecorder
	now       func() time.Time
}

// NewCartCommandService 创建命令服务，publisher 为 nil 时不发布事件
func NewCartCommandService(sessions *SessionRegistry, publisher domain.EventPublisher, recorder MetricsRecorder) *CartCommandService {
	return &CartCommandService{
		sessions:  sessions,
		publisher: publisher,
		recorder:  recorderOrNop(recorder),
		now:       time.Now,
	}
}

// AddItem 加入商品
func (s *CartCommandService) AddItem(ctx context.Context, cmd AddItemCommand) (*CartResult, error) {
	store, err := s.sessions.Get(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}
	state, change := store.AddItem(domain.LineItem{
		ID:       cmd.ItemID,
		Name:     cmd.Name,
		Price:    cmd.Price,
		Quantity: cmd.Quantity,
		ImageURL: cmd.ImageURL,
	})
	return s.finish(ctx, "add_item", cmd.SessionID, state, change), nil
}

// RemoveItem 移除商品
func (s *CartCommandService) RemoveItem(ctx context.Context, cmd RemoveItemCommand) (*CartResult, error) {
	store, err := s.sessions.Get(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}
	state, change := store.RemoveItem(cmd.ItemID)
	return s.finish(ctx, "remove_item", cmd.SessionID, state, change), nil
}

// UpdateQuantity 修改商品数量
func (s *CartCommandService) UpdateQuantity(ctx context.Context, cmd UpdateQuantityCommand) (*CartResult, error) {
	store, err := s.sessions.Get(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}
	state, change := store.UpdateQuantity(cmd.ItemID, cmd.Quantity)
	return s.finish(ctx, "update_quantity", cmd.SessionID, state, change), nil
}

// ClearCart 清空购物车
func (s *CartCommandService) ClearCart(ctx context.Context, cmd ClearCartCommand) (*CartResult, error) {
	store, err := s.sessions.Get(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}
	state, change := store.ClearCart()
	return s.finish(ctx, "clear_cart", cmd.SessionID, state, change), nil
}

func (s *CartCommandService) finish(ctx context.Context, operation, sessionID string, state domain.CartState, change domain.Change) *CartResult {
	s.recorder.RecordCartOperation(operation, change.Changed(), change.Clamped)

	if change.LimitReached() {
		logger.Info(ctx, "Cart quantity limit reached",
			"session_id", sessionID,
			"item_id", change.ItemID,
			"requested", change.Requested,
			"clamped", change.Clamped)
	}

	if change.Changed() && s.publisher != nil {
		event := domain.NewCartChangedEvent(sessionID, change, state, s.now())
		if err := s.publisher.Publish(ctx, event.EventName(), sessionID, event); err != nil {
			s.recorder.RecordPublishFailure()
			logger.Error(ctx, "Failed to publish cart event", "event", event.EventName(), "session_id", sessionID, "error", err)
		}
	}

	return &CartResult{Change: change, Cart: state}
}
