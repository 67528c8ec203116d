package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string          `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name      string          `gorm:"type:varchar(255);not null" json:"name"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	ImageURL  string          `gorm:"type:text" json:"image_url"`
	CreatedAt time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// ToCartItem はカートに入れる時の形にする（quantityはCart側で決める）。
func (p Product) ToCartItem() CartItem {
	return CartItem{
		ID:    p.ID,
		Name:  p.Name,
		Price: p.Price,
	}
}
