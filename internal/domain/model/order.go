package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
)

// 注文ヘッダ（orders）
type Order struct {
	ID        string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string          `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Total     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	Status    OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}

// idはinsert時に採番する
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}
