package mysql

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartSnapshotModel 购物车快照表映射，每个会话一行
type CartSnapshotModel struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"`
	CreatedAt   time.Time       `gorm:"column:created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at"`
	SessionID   string          `gorm:"column:session_id;type:varchar(64);uniqueIndex;not null"`
	Payload     string          `gorm:"column:payload;type:text;not null"`
	TotalAmount decimal.Decimal `gorm:"column:total_amount;type:decimal(20,8);not null"`
	ItemCount   int             `gorm:"column:item_count;not null;default:0"`
}

func (CartSnapshotModel) TableName() string { return "cart_snapshots" }
