// Package domain 包含购物车服务的领域模型
package domain

import (
	"github.com/shopspring/decimal"
)

// MaxQuantity 单个商品在购物车中允许的最大数量
const MaxQuantity = 10

// LineItem 购物车条目
// 名称与价格是加入购物车时的快照，之后不再与商品目录同步
type LineItem struct {
	// 商品 ID（购物车内唯一）
	ID int64
	// 商品名称
	Name string
	// 单价
	Price decimal.Decimal
	// 数量，1 <= Quantity <= MaxQuantity
	Quantity int
	// 商品图片（可选）
	ImageURL string
}

// Subtotal 条目小计 price × quantity
func (i LineItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartState 购物车快照
// 快照是不可变值：所有变更操作都返回新的快照，不会修改接收者
type CartState struct {
	// 条目列表，按加入顺序排列，按 ID 唯一
	Items []LineItem
	// 总金额，始终等于所有条目小计之和，增量维护
	TotalAmount decimal.Decimal
}

// EmptyCart 返回空购物车
func EmptyCart() CartState {
	return CartState{Items: []LineItem{}, TotalAmount: decimal.Zero}
}

// Clone 深拷贝快照
func (s CartState) Clone() CartState {
	items := make([]LineItem, len(s.Items))
	copy(items, s.Items)
	return CartState{Items: items, TotalAmount: s.TotalAmount}
}

// IsEmpty 购物车是否为空
func (s CartState) IsEmpty() bool {
	return len(s.Items) == 0
}

// Find 按商品 ID 查找条目
func (s CartState) Find(id int64) (LineItem, bool) {
	if idx := s.indexOf(id); idx >= 0 {
		return s.Items[idx], true
	}
	return LineItem{}, false
}

// ItemCount 购物车内商品总件数（用于角标展示）
func (s CartState) ItemCount() int {
	count := 0
	for _, item := range s.Items {
		count += item.Quantity
	}
	return count
}

// Remaining 某商品在达到上限前还能加入的件数
func (s CartState) Remaining(id int64) int {
	item, ok := s.Find(id)
	if !ok {
		return MaxQuantity
	}
	if item.Quantity >= MaxQuantity {
		return 0
	}
	return MaxQuantity - item.Quantity
}

// CalculateTotal 从条目重新计算总金额
// 变更操作不使用它，只用于校验和修复持久化快照
func (s CartState) CalculateTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// AddItem 加入商品
// 已存在的商品合并数量，超过 MaxQuantity 的部分被截断；新商品的数量同样截断到 MaxQuantity。
// 数量小于 1 或价格为负的请求不改变购物车。
// 合并时沿用已存商品的价格，金额增量按已存价格计算。
func (s CartState) AddItem(item LineItem) (CartState, Change) {
	change := Change{Kind: ChangeNone, ItemID: item.ID, Requested: item.Quantity}
	if item.Quantity < 1 || item.Price.IsNegative() {
		return s, change
	}

	idx := s.indexOf(item.ID)
	if idx >= 0 {
		existing := s.Items[idx]
		change.Previous = existing.Quantity

		added := item.Quantity
		if existing.Quantity+item.Quantity > MaxQuantity {
			added = MaxQuantity - existing.Quantity
		}
		if added <= 0 {
			change.Clamped = item.Quantity
			return s, change
		}

		next := s.Clone()
		next.Items[idx].Quantity = existing.Quantity + added
		delta := existing.Price.Mul(decimal.NewFromInt(int64(added)))
		next.TotalAmount = next.TotalAmount.Add(delta)

		change.Kind = ChangeItemAdded
		change.Applied = added
		change.Clamped = item.Quantity - added
		change.Delta = delta
		return next, change
	}

	quantity := min(item.Quantity, MaxQuantity)
	appended := item
	appended.Quantity = quantity

	next := s.Clone()
	next.Items = append(next.Items, appended)
	delta := item.Price.Mul(decimal.NewFromInt(int64(quantity)))
	next.TotalAmount = next.TotalAmount.Add(delta)

	change.Kind = ChangeItemAdded
	change.Applied = quantity
	change.Clamped = item.Quantity - quantity
	change.Delta = delta
	return next, change
}

// RemoveItem 移除商品，商品不存在时不做任何改变
func (s CartState) RemoveItem(id int64) (CartState, Change) {
	change := Change{Kind: ChangeNone, ItemID: id}
	idx := s.indexOf(id)
	if idx < 0 {
		return s, change
	}

	item := s.Items[idx]
	items := make([]LineItem, 0, len(s.Items)-1)
	items = append(items, s.Items[:idx]...)
	items = append(items, s.Items[idx+1:]...)

	delta := item.Subtotal().Neg()
	next := CartState{Items: items, TotalAmount: s.TotalAmount.Add(delta)}

	change.Kind = ChangeItemRemoved
	change.Previous = item.Quantity
	change.Applied = item.Quantity
	change.Delta = delta
	return next, change
}

// UpdateQuantity 设置商品数量
// quantity < 1 时忽略请求；超过 MaxQuantity 时截断；商品不存在时不做任何改变。
func (s CartState) UpdateQuantity(id int64, quantity int) (CartState, Change) {
	change := Change{Kind: ChangeNone, ItemID: id, Requested: quantity}
	if quantity < 1 {
		return s, change
	}
	idx := s.indexOf(id)
	if idx < 0 {
		return s, change
	}

	item := s.Items[idx]
	clamped := min(quantity, MaxQuantity)
	change.Previous = item.Quantity
	change.Applied = clamped
	change.Clamped = quantity - clamped
	if clamped == item.Quantity {
		return s, change
	}

	next := s.Clone()
	next.Items[idx].Quantity = clamped
	delta := item.Price.Mul(decimal.NewFromInt(int64(clamped - item.Quantity)))
	next.TotalAmount = next.TotalAmount.Add(delta)

	change.Kind = ChangeQuantityUpdated
	change.Delta = delta
	return next, change
}

// Clear 清空购物车，幂等
func (s CartState) Clear() (CartState, Change) {
	change := Change{Kind: ChangeNone}
	if s.IsEmpty() && s.TotalAmount.IsZero() {
		return EmptyCart(), change
	}
	change.Kind = ChangeCleared
	change.Previous = s.ItemCount()
	change.Applied = s.ItemCount()
	change.Delta = s.TotalAmount.Neg()
	return EmptyCart(), change
}

// Normalize 修复从持久化存储恢复的快照
// 丢弃非法条目，把超限数量截断到 MaxQuantity，并在总金额与条目不一致时重新计算。
// 返回快照是否被修改。
func (s CartState) Normalize() (CartState, bool) {
	repaired := false
	seen := make(map[int64]struct{}, len(s.Items))
	items := make([]LineItem, 0, len(s.Items))
	for _, item := range s.Items {
		if _, dup := seen[item.ID]; dup || item.Quantity < 1 || item.Price.IsNegative() {
			repaired = true
			continue
		}
		seen[item.ID] = struct{}{}
		if item.Quantity > MaxQuantity {
			item.Quantity = MaxQuantity
			repaired = true
		}
		items = append(items, item)
	}

	next := CartState{Items: items, TotalAmount: s.TotalAmount}
	if total := next.CalculateTotal(); !total.Equal(s.TotalAmount) {
		next.TotalAmount = total
		repaired = true
	}
	return next, repaired
}

func (s CartState) indexOf(id int64) int {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return i
		}
	}
	return -1
}
