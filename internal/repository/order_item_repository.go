package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type OrderItemRepository interface {
	InsertBulk(ctx context.Context, items []model.OrderItem) ([]model.OrderItem, error)
	ListByOrderID(ctx context.Context, orderID string) ([]model.OrderItem, error)
}
