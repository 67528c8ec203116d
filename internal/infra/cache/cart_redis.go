package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/redis/go-redis/v9"
)

const maxUpdateAttempts = 5

// 競合が続いてUpdateを諦めた
var ErrCartConflict = errors.New("cart updated concurrently")

// 保存形式（Cartの中身はメソッド経由でしか触れないので別の型にする）
type storedCart struct {
	UserID    string           `json:"user_id"`
	Items     []model.CartItem `json:"items"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// RedisCartStore はカートを cart:{user_id} にJSONで保存する。
// 保存のたびにTTLを延ばす（放置されたカートは消える）。
type RedisCartStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisCartStore(client *redis.Client, ttl time.Duration) *RedisCartStore {
	return &RedisCartStore{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (r *RedisCartStore) Load(ctx context.Context, userID string) (*model.Cart, error) {
	return r.get(ctx, r.client, userID)
}

func (r *RedisCartStore) Save(ctx context.Context, cart *model.Cart) error {
	// 空のカートはキーごと消す
	if cart.Len() == 0 {
		return r.Delete(ctx, cart.UserID)
	}

	data, err := r.encode(cart)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, cartKey(cart.UserID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Update はWATCHで楽観ロックする。間に他の書き込みがあれば読み直してやり直す。
func (r *RedisCartStore) Update(ctx context.Context, userID string, fn func(*model.Cart) error) error {
	key := cartKey(userID)

	txf := func(tx *redis.Tx) error {
		cart, err := r.get(ctx, tx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			cart = model.NewCart(userID)
		} else if err != nil {
			return err
		}

		if err := fn(cart); err != nil {
			return err
		}

		var data []byte
		if cart.Len() > 0 {
			if data, err = r.encode(cart); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if data == nil {
				pipe.Del(ctx, key)
				return nil
			}
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateAttempts; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("redis update failed: %w", err)
		}
		return nil
	}
	return ErrCartConflict
}

// *redis.Client と *redis.Tx の共通部分
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *RedisCartStore) get(ctx context.Context, c stringGetter, userID string) (*model.Cart, error) {
	data, err := c.Get(ctx, cartKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var sc storedCart
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}

	cart := model.NewCart(userID)
	if err := cart.SetItems(sc.Items); err != nil {
		return nil, fmt.Errorf("stored cart for %s: %w", userID, err)
	}
	return cart, nil
}

func (r *RedisCartStore) encode(cart *model.Cart) ([]byte, error) {
	data, err := json.Marshal(storedCart{
		UserID:    cart.UserID,
		Items:     cart.Items(),
		UpdatedAt: r.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal cart failed: %w", err)
	}
	return data, nil
}

func (r *RedisCartStore) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Ping は起動時の疎通確認
func (r *RedisCartStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func cartKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}
