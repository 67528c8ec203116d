package model

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidCartItem = errors.New("invalid cart item")

// Cart はユーザーごとのカート状態。
// 書き込みはメソッド経由のみ（同じidは必ず1行、quantityは常に1以上）。
type Cart struct {
	UserID string
	items  []CartItem
}

func NewCart(userID string) *Cart {
	return &Cart{UserID: userID}
}

// AddItem は同じidがあれば数量+1、無ければquantity=1で追加する。
// 既存行のname/priceは上書きしない。
func (c *Cart) AddItem(item CartItem) error {
	id := strings.TrimSpace(item.ID)
	if id == "" {
		return ErrInvalidCartItem
	}

	if i := c.indexOf(id); i >= 0 {
		c.items[i].Quantity++
		return nil
	}

	item.ID = id
	item.Quantity = 1
	c.items = append(c.items, item)
	return nil
}

// RemoveItem は数量に関係なく行ごと消す。無ければ何もしない。
func (c *Cart) RemoveItem(id string) {
	i := c.indexOf(strings.TrimSpace(id))
	if i < 0 {
		return
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
}

// DecreaseItem は数量-1。0になった行は削除する。
func (c *Cart) DecreaseItem(id string) {
	i := c.indexOf(strings.TrimSpace(id))
	if i < 0 {
		return
	}
	if c.items[i].Quantity <= 1 {
		c.items = append(c.items[:i], c.items[i+1:]...)
		return
	}
	c.items[i].Quantity--
}

// SetItems はカートを丸ごと置き換える（保存済みカートの読み込みなど）。
// 不正な行が1つでもあればカートは変更しない。同じidは数量を合算する。
func (c *Cart) SetItems(items []CartItem) error {
	merged := make([]CartItem, 0, len(items))
	pos := make(map[string]int, len(items))

	for _, it := range items {
		id := strings.TrimSpace(it.ID)
		if id == "" || it.Quantity < 1 {
			return ErrInvalidCartItem
		}
		if i, ok := pos[id]; ok {
			merged[i].Quantity += it.Quantity
			continue
		}
		it.ID = id
		pos[id] = len(merged)
		merged = append(merged, it)
	}

	c.items = merged
	return nil
}

// RemoveOrdered は注文済みの数量だけ差し引く（0以下になった行は消す）。
// 注文後に追加された分はカートに残る。
func (c *Cart) RemoveOrdered(lines []OrderLine) {
	for _, l := range lines {
		i := c.indexOf(strings.TrimSpace(l.ProductID))
		if i < 0 {
			continue
		}
		if c.items[i].Quantity <= l.Quantity {
			c.items = append(c.items[:i], c.items[i+1:]...)
			continue
		}
		c.items[i].Quantity -= l.Quantity
	}
}

// Clear はカートを空にする。
func (c *Cart) Clear() {
	c.items = nil
}

// Items はコピーを返す（呼び出し側から中身を書き換えられないように）。
func (c *Cart) Items() []CartItem {
	out := make([]CartItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Len() int {
	return len(c.items)
}

// TotalItems は全行のquantity合計。読むたびに計算する。
func (c *Cart) TotalItems() int64 {
	var total int64
	for _, it := range c.items {
		total += it.Quantity
	}
	return total
}

// Subtotal は Σ price × quantity。
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// OrderLines はチェックアウト用に注文明細の入力へ変換する。
// price_at_purchase はカートに入れた時点の価格。
func (c *Cart) OrderLines() []OrderLine {
	lines := make([]OrderLine, 0, len(c.items))
	for _, it := range c.items {
		lines = append(lines, OrderLine{
			ProductID:       it.ID,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.Price,
		})
	}
	return lines
}

func (c *Cart) indexOf(id string) int {
	for i := range c.items {
		if c.items[i].ID == id {
			return i
		}
	}
	return -1
}
