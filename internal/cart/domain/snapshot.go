package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

type lineItemJSON struct {
	ID       int64       `json:"id"`
	Name     string      `json:"name"`
	Price    json.Number `json:"price"`
	Quantity int         `json:"quantity"`
	ImageURL string      `json:"imageUrl,omitempty"`
}

type cartStateJSON struct {
	Items       []lineItemJSON `json:"items"`
	TotalAmount json.Number    `json:"totalAmount"`
}

// MarshalJSON 以数字形式编码价格
func (i LineItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(toLineItemJSON(i))
}

// UnmarshalJSON 解码条目，价格接受 JSON 数字
func (i *LineItem) UnmarshalJSON(data []byte) error {
	var raw lineItemJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	item, err := fromLineItemJSON(raw)
	if err != nil {
		return err
	}
	*i = item
	return nil
}

// MarshalJSON 持久化快照格式 {"items":[...],"totalAmount":n}
func (s CartState) MarshalJSON() ([]byte, error) {
	out := cartStateJSON{
		Items:       make([]lineItemJSON, 0, len(s.Items)),
		TotalAmount: json.Number(s.TotalAmount.String()),
	}
	for _, item := range s.Items {
		out.Items = append(out.Items, toLineItemJSON(item))
	}
	return json.Marshal(out)
}

// UnmarshalJSON 解码持久化快照，不做修复，修复见 Normalize
func (s *CartState) UnmarshalJSON(data []byte) error {
	var raw cartStateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	total, err := parseAmount(raw.TotalAmount)
	if err != nil {
		return fmt.Errorf("totalAmount: %w", err)
	}
	items := make([]LineItem, 0, len(raw.Items))
	for _, r := range raw.Items {
		item, err := fromLineItemJSON(r)
		if err != nil {
			return err
		}
		items = append(items, item)
	}
	*s = CartState{Items: items, TotalAmount: total}
	return nil
}

func toLineItemJSON(i LineItem) lineItemJSON {
	return lineItemJSON{
		ID:       i.ID,
		Name:     i.Name,
		Price:    json.Number(i.Price.String()),
		Quantity: i.Quantity,
		ImageURL: i.ImageURL,
	}
}

func fromLineItemJSON(r lineItemJSON) (LineItem, error) {
	price, err := parseAmount(r.Price)
	if err != nil {
		return LineItem{}, fmt.Errorf("item %d price: %w", r.ID, err)
	}
	return LineItem{
		ID:       r.ID,
		Name:     r.Name,
		Price:    price,
		Quantity: r.Quantity,
		ImageURL: r.ImageURL,
	}, nil
}

func parseAmount(n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(n.String())
}
