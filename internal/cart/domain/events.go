package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventItemAdded       = "cart.item.added"
	EventItemRemoved     = "cart.item.removed"
	EventQuantityUpdated = "cart.quantity.updated"
	EventCartCleared     = "cart.cleared"
)

// DomainEvent 领域事件
type DomainEvent interface {
	EventName() string
	OccurredAt() time.Time
}

// CartChangedEvent 购物车变更事件
type CartChangedEvent struct {
	Name        string          `json:"event"`
	SessionID   string          `json:"session_id"`
	ItemID      int64           `json:"item_id,omitempty"`
	Requested   int             `json:"requested"`
	Applied     int             `json:"applied"`
	Clamped     int             `json:"clamped"`
	Quantity    int             `json:"quantity"`
	Delta       decimal.Decimal `json:"delta"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
	Timestamp   time.Time       `json:"timestamp"`
}

func (e *CartChangedEvent) EventName() string     { return e.Name }
func (e *CartChangedEvent) OccurredAt() time.Time { return e.Timestamp }

// MarshalJSON 金额以数字输出
func (e *CartChangedEvent) MarshalJSON() ([]byte, error) {
	type alias CartChangedEvent
	return json.Marshal(struct {
		*alias
		Delta       json.Number `json:"delta"`
		TotalAmount json.Number `json:"total_amount"`
	}{
		alias:       (*alias)(e),
		Delta:       json.Number(e.Delta.String()),
		TotalAmount: json.Number(e.TotalAmount.String()),
	})
}

// EventName 变更对应的事件主题，无变化时返回空串
func (c Change) EventName() string {
	switch c.Kind {
	case ChangeItemAdded:
		return EventItemAdded
	case ChangeItemRemoved:
		return EventItemRemoved
	case ChangeQuantityUpdated:
		return EventQuantityUpdated
	case ChangeCleared:
		return EventCartCleared
	default:
		return ""
	}
}

// NewCartChangedEvent 由变更结果和新快照构造事件
func NewCartChangedEvent(sessionID string, change Change, state CartState, now time.Time) *CartChangedEvent {
	quantity := 0
	if item, ok := state.Find(change.ItemID); ok {
		quantity = item.Quantity
	}
	return &CartChangedEvent{
		Name:        change.EventName(),
		SessionID:   sessionID,
		ItemID:      change.ItemID,
		Requested:   change.Requested,
		Applied:     change.Applied,
		Clamped:     change.Clamped,
		Quantity:    quantity,
		Delta:       change.Delta,
		TotalAmount: state.TotalAmount,
		ItemCount:   state.ItemCount(),
		Timestamp:   now,
	}
}
