package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 一覧検索
type ProductListQuery struct {
	Page  int
	Limit int
	Q     string
}

// 商品の永続化（保存・取得）だけを約束。
type ProductRepository interface {
	List(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	FindByID(ctx context.Context, id string) (model.Product, error)
	Count(ctx context.Context) (int64, error)
	CreateBulk(ctx context.Context, products []model.Product) error
}

// 制約違反（外部キー、一意制約、NOT NULLなど）
var ErrConstraint = errors.New("constraint violation")
