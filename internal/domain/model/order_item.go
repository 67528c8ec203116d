package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 注文明細（order_items）
type OrderItem struct {
	ID              string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrderID         string          `gorm:"type:varchar(36);not null;index" json:"order_id"`
	ProductID       string          `gorm:"type:varchar(64);not null;index" json:"product_id"`
	Quantity        int64           `gorm:"not null" json:"quantity"`
	PriceAtPurchase decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price_at_purchase"`

	// order_items.order_id -> orders.id（注文を消すと明細も消える）
	Order *Order `gorm:"foreignKey:OrderID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// OrderLine は注文リクエストの1行（まだorder_idを持たない）。
type OrderLine struct {
	ProductID       string
	Quantity        int64
	PriceAtPurchase decimal.Decimal
}

func (l OrderLine) LineTotal() decimal.Decimal {
	return l.PriceAtPurchase.Mul(decimal.NewFromInt(l.Quantity))
}
