package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// ordersテーブル。insertは採番されたid/created_atを読み戻して返す。
type OrderRepository interface {
	Insert(ctx context.Context, order model.Order) (model.Order, error)
	Delete(ctx context.Context, orderID string) error
	FindByID(ctx context.Context, orderID string) (model.Order, error)
}
