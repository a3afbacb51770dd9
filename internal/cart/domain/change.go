package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ChangeKind 变更类型
type ChangeKind string

const (
	ChangeNone            ChangeKind = "NONE"
	ChangeItemAdded       ChangeKind = "ITEM_ADDED"
	ChangeItemRemoved     ChangeKind = "ITEM_REMOVED"
	ChangeQuantityUpdated ChangeKind = "QUANTITY_UPDATED"
	ChangeCleared         ChangeKind = "CART_CLEARED"
)

// Change 一次变更的结果报告
// Clamped 表示因数量上限被截断的件数，调用方据此提示“已达上限”
type Change struct {
	Kind      ChangeKind      `json:"kind"`
	ItemID    int64           `json:"itemId,omitempty"`
	Requested int             `json:"requested"`
	Applied   int             `json:"applied"`
	Clamped   int             `json:"clamped"`
	Previous  int             `json:"previous"`
	Delta     decimal.Decimal `json:"delta"`
}

// Changed 快照是否发生了变化
func (c Change) Changed() bool {
	return c.Kind != ChangeNone
}

// LimitReached 请求是否触及数量上限
func (c Change) LimitReached() bool {
	return c.Clamped > 0
}

// MarshalJSON 金额以数字输出
func (c Change) MarshalJSON() ([]byte, error) {
	type alias Change
	return json.Marshal(struct {
		alias
		Delta json.Number `json:"delta"`
	}{
		alias: alias(c),
		Delta: json.Number(c.Delta.String()),
	})
}
