package cache

import (
	"context"
	"sync"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// MemoryCartStore はREDIS_ADDRが無い時のカート保存先（プロセス内のみ）。
type MemoryCartStore struct {
	mu    sync.Mutex
	carts map[string][]model.CartItem
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{carts: map[string][]model.CartItem{}}
}

func (m *MemoryCartStore) Load(_ context.Context, userID string) (*model.Cart, error) {
	m.mu.Lock()
	items, ok := m.carts[userID]
	m.mu.Unlock()
	if !ok {
		return nil, repo.ErrNotFound
	}

	cart := model.NewCart(userID)
	if err := cart.SetItems(items); err != nil {
		return nil, err
	}
	return cart, nil
}

func (m *MemoryCartStore) Save(_ context.Context, cart *model.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cart.Len() == 0 {
		delete(m.carts, cart.UserID)
		return nil
	}
	m.carts[cart.UserID] = cart.Items()
	return nil
}

func (m *MemoryCartStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

func (m *MemoryCartStore) Update(_ context.Context, userID string, fn func(*model.Cart) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart := model.NewCart(userID)
	if items, ok := m.carts[userID]; ok {
		if err := cart.SetItems(items); err != nil {
			return err
		}
	}
	if err := fn(cart); err != nil {
		return err
	}

	if cart.Len() == 0 {
		delete(m.carts, userID)
		return nil
	}
	m.carts[userID] = cart.Items()
	return nil
}
