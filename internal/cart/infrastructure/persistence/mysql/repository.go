// Package mysql 基于 gorm 的购物车快照仓储
package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wyfcoding/storefront/internal/cart/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type cartRepository struct{ db *gorm.DB }

// NewCartRepository 创建 gorm 仓储
func NewCartRepository(db *gorm.DB) domain.CartRepository {
	return &cartRepository{db: db}
}

// AutoMigrate 创建或更新快照表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&CartSnapshotModel{})
}

func (r *cartRepository) Load(ctx context.Context, sessionID string) (*domain.CartState, error) {
	var model CartSnapshotModel
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to query cart snapshot: %w", err)
	}

	var state domain.CartState
	if err := json.Unmarshal([]byte(model.Payload), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart snapshot: %w", err)
	}
	return &state, nil
}

// Save 按 session_id 插入或覆盖
func (r *cartRepository) Save(ctx context.Context, sessionID string, state domain.CartState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal cart snapshot: %w", err)
	}

	model := CartSnapshotModel{
		SessionID:   sessionID,
		Payload:     string(payload),
		TotalAmount: state.TotalAmount,
		ItemCount:   state.ItemCount(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "total_amount", "item_count", "updated_at"}),
	}).Create(&model).Error
}

func (r *cartRepository) Delete(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&CartSnapshotModel{}).Error
}

func (r *cartRepository) Ping(ctx context.Context) bool {
	sqlDB, err := r.db.DB()
	if err != nil {
		return false
	}
	return sqlDB.PingContext(ctx) == nil
}
