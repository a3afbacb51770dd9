package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/storefront/internal/cart/domain"
)

// Config 应用层配置
type Config struct {
	// 单次快照写入超时
	WriteTimeout time.Duration
	// 会话在内存中保留的空闲时间
	IdleTimeout time.Duration
}

// CartApplicationService 购物车服务门面，整合命令和查询服务
type CartApplicationService struct {
	commandService *CartCommandService
	queryService   *CartQueryService
	sessions       *SessionRegistry
	mirror         *Mirror
	idleTimeout    time.Duration
}

// NewCartApplicationService 构造函数
func NewCartApplicationService(repo domain.CartRepository, publisher domain.EventPublisher, recorder MetricsRecorder, cfg Config) *CartApplicationService {
	mirror := NewMirror(repo, recorder, cfg.WriteTimeout)
	sessions := NewSessionRegistry(repo, mirror, recorder)
	idle := cfg.IdleTimeout
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	return &CartApplicationService{
		commandService: NewCartCommandService(sessions, publisher, recorder),
		queryService:   NewCartQueryService(sessions),
		sessions:       sessions,
		mirror:         mirror,
		idleTimeout:    idle,
	}
}

// --- Command (Writes) ---

// AddItem 加入商品
func (s *CartApplicationService) AddItem(ctx context.Context, cmd AddItemCommand) (*CartResult, error) {
	return s.commandService.AddItem(ctx, cmd)
}

// RemoveItem 移除商品
func (s *CartApplicationService) RemoveItem(ctx context.Context, cmd RemoveItemCommand) (*CartResult, error) {
	return s.commandService.RemoveItem(ctx, cmd)
}

// UpdateQuantity 修改数量
func (s *CartApplicationService) UpdateQuantity(ctx context.Context, cmd UpdateQuantityCommand) (*CartResult, error) {
	return s.commandService.UpdateQuantity(ctx, cmd)
}

// ClearCart 清空购物车
func (s *CartApplicationService) ClearCart(ctx context.Context, cmd ClearCartCommand) (*CartResult, error) {
	return s.commandService.ClearCart(ctx, cmd)
}

// --- Query (Reads) ---

// GetCart 获取购物车
func (s *CartApplicationService) GetCart(ctx context.Context, sessionID string) (domain.CartState, error) {
	return s.queryService.GetCart(ctx, sessionID)
}

// GetItemCount 获取商品总件数
func (s *CartApplicationService) GetItemCount(ctx context.Context, sessionID string) (int, error) {
	return s.queryService.GetItemCount(ctx, sessionID)
}

// GetTotal 获取总金额
func (s *CartApplicationService) GetTotal(ctx context.Context, sessionID string) (decimal.Decimal, error) {
	return s.queryService.GetTotal(ctx, sessionID)
}

// Remaining 获取商品剩余可加入件数
func (s *CartApplicationService) Remaining(ctx context.Context, sessionID string, itemID int64) (int, error) {
	return s.queryService.Remaining(ctx, sessionID, itemID)
}

// CheckoutLines 获取结算条目
func (s *CartApplicationService) CheckoutLines(ctx context.Context, sessionID string) ([]domain.LineItem, decimal.Decimal, error) {
	return s.queryService.CheckoutLines(ctx, sessionID)
}

// --- Lifecycle ---

// SweepIdle 淘汰空闲会话
func (s *CartApplicationService) SweepIdle(ctx context.Context) int {
	return s.sessions.Sweep(ctx, s.idleTimeout)
}

// ActiveSessions 内存中的会话数
func (s *CartApplicationService) ActiveSessions() int {
	return s.sessions.Len()
}

// Flush 写出所有待写快照
func (s *CartApplicationService) Flush(ctx context.Context) {
	s.mirror.Flush(ctx)
}

// Close 停止镜像写入器
func (s *CartApplicationService) Close() {
	s.mirror.Close()
}
