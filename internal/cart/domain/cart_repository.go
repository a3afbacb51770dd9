package domain

import (
	"context"
	"errors"
)

// ErrCartNotFound 会话没有持久化的购物车
var ErrCartNotFound = errors.New("cart not found")

// CartRepository 购物车快照仓储接口
// 仓储是购物车的持久化镜像，按会话 ID 存储整份快照
type CartRepository interface {
	// Load 加载会话快照，不存在时返回 ErrCartNotFound
	Load(ctx context.Context, sessionID string) (*CartState, error)
	// Save 覆盖写入会话快照
	Save(ctx context.Context, sessionID string, state CartState) error
	// Delete 删除会话快照
	Delete(ctx context.Context, sessionID string) error
	// Ping 检查后端是否可用
	Ping(ctx context.Context) bool
}
