package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 保存済みカート。無ければ ErrNotFound。
type CartStore interface {
	Load(ctx context.Context, userID string) (*model.Cart, error)
	Save(ctx context.Context, cart *model.Cart) error
	Delete(ctx context.Context, userID string) error
	// 読み込み→fn→保存を他の書き込みと競合しない形で行う。
	// 保存済みが無ければ空のカートでfnを呼ぶ。
	Update(ctx context.Context, userID string, fn func(*model.Cart) error) error
}
