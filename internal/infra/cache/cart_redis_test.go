package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T, ttl time.Duration) (*RedisCartStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisCartStore(client, ttl), mr
}

func pineapple(t *testing.T) *model.Cart {
	t.Helper()
	c := model.NewCart("u1")
	it := model.CartItem{ID: "1", Name: "Whole Pineapple", Price: decimal.RequireFromString("19.99")}
	require.NoError(t, c.AddItem(it))
	require.NoError(t, c.AddItem(it))
	require.NoError(t, c.AddItem(model.CartItem{ID: "8", Name: "Pineapple Hat", Price: decimal.RequireFromString("89.99")}))
	return c
}

func TestRedisCartStore_SaveLoad(t *testing.T) {
	store, _ := setupTestRedis(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, pineapple(t)))

	got, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, 2, got.Len())
	assert.Equal(t, int64(3), got.TotalItems())
	assert.True(t, got.Subtotal().Equal(decimal.RequireFromString("129.97")))
}

func TestRedisCartStore_LoadMissing(t *testing.T) {
	store, _ := setupTestRedis(t, time.Hour)

	_, err := store.Load(context.Background(), "nobody")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestRedisCartStore_InvalidJSON(t *testing.T) {
	store, mr := setupTestRedis(t, time.Hour)
	require.NoError(t, mr.Set(cartKey("u1"), `{"items":[`))

	_, err := store.Load(context.Background(), "u1")
	require.ErrorContains(t, err, "unmarshal cart failed")
}

func TestRedisCartStore_StoredZeroQuantityRejected(t *testing.T) {
	store, mr := setupTestRedis(t, time.Hour)
	require.NoError(t, mr.Set(cartKey("u1"), `{"user_id":"u1","items":[{"id":"1","name":"x","price":"1","quantity":0}]}`))

	_, err := store.Load(context.Background(), "u1")
	assert.ErrorIs(t, err, model.ErrInvalidCartItem)
}

func TestRedisCartStore_TTL(t *testing.T) {
	store, mr := setupTestRedis(t, 30*time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, pineapple(t)))
	assert.Equal(t, 30*time.Minute, mr.TTL(cartKey("u1")))

	mr.FastForward(31 * time.Minute)
	_, err := store.Load(ctx, "u1")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestRedisCartStore_SaveEmptyDeletesKey(t *testing.T) {
	store, mr := setupTestRedis(t, time.Hour)
	ctx := context.Background()

	c := pineapple(t)
	require.NoError(t, store.Save(ctx, c))
	require.True(t, mr.Exists(cartKey("u1")))

	c.Clear()
	require.NoError(t, store.Save(ctx, c))
	assert.False(t, mr.Exists(cartKey("u1")))
}

func TestRedisCartStore_Delete(t *testing.T) {
	store, mr := setupTestRedis(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, pineapple(t)))
	require.NoError(t, store.Delete(ctx, "u1"))
	assert.False(t, mr.Exists(cartKey("u1")))

	// 無いキーの削除もエラーにしない
	require.NoError(t, store.Delete(ctx, "u1"))
}

func TestMemoryCartStore(t *testing.T) {
	store := NewMemoryCartStore()
	ctx := context.Background()

	_, err := store.Load(ctx, "u1")
	assert.ErrorIs(t, err, repo.ErrNotFound)

	c := pineapple(t)
	require.NoError(t, store.Save(ctx, c))

	// 保存後に元のカートを変えても保存済みの中身は変わらない
	c.RemoveItem("1")

	got, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.TotalItems())

	require.NoError(t, store.Delete(ctx, "u1"))
	_, err = store.Load(ctx, "u1")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestRedisCartStore_Update_MissingStartsEmpty(t *testing.T) {
	store, mr := setupTestRedis(t, time.Hour)
	ctx := context.Background()

	err := store.Update(ctx, "u1", func(c *model.Cart) error {
		assert.Equal(t, 0, c.Len())
		return c.AddItem(model.CartItem{ID: "2", Name: "Pineapple Chunks", Price: decimal.RequireFromString("8.50")})
	})
	require.NoError(t, err)

	got, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.TotalItems())
	assert.Equal(t, time.Hour, mr.TTL(cartKey("u1")))
}

func TestRedisCartStore_Update_RetriesOnConcurrentWrite(t *testing.T) {
	store, mr := setupTestRedis(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, pineapple(t)))

	// 同じRedisを見る別のクライアント（別リクエスト）
	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = other.Close() })
	otherStore := NewRedisCartStore(other, time.Hour)

	calls := 0
	err := store.Update(ctx, "u1", func(c *model.Cart) error {
		calls++
		if calls == 1 {
			// 読んだ後に別リクエストが商品を追加
			concurrent := pineapple(t)
			require.NoError(t, concurrent.AddItem(model.CartItem{ID: "2", Name: "Pineapple Chunks", Price: decimal.RequireFromString("8.50")}))
			require.NoError(t, otherStore.Save(ctx, concurrent))
		}
		c.RemoveOrdered([]model.OrderLine{{ProductID: "1", Quantity: 2}, {ProductID: "8", Quantity: 1}})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	got, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got.Items(), 1)
	assert.Equal(t, "2", got.Items()[0].ID)
}

func TestRedisCartStore_Update_EmptiedCartDeletesKey(t *testing.T) {
	store, mr := setupTestRedis(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, pineapple(t)))

	require.NoError(t, store.Update(ctx, "u1", func(c *model.Cart) error {
		c.Clear()
		return nil
	}))
	assert.False(t, mr.Exists(cartKey("u1")))
}

func TestRedisCartStore_Update_FnErrorWritesNothing(t *testing.T) {
	store, _ := setupTestRedis(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, pineapple(t)))

	boom := errors.New("boom")
	err := store.Update(ctx, "u1", func(c *model.Cart) error {
		c.Clear()
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.TotalItems())
}

func TestMemoryCartStore_Update(t *testing.T) {
	store := NewMemoryCartStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, pineapple(t)))

	require.NoError(t, store.Update(ctx, "u1", func(c *model.Cart) error {
		c.RemoveOrdered([]model.OrderLine{{ProductID: "1", Quantity: 2}})
		return nil
	}))
	got, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.TotalItems())

	require.NoError(t, store.Update(ctx, "u1", func(c *model.Cart) error {
		c.RemoveOrdered([]model.OrderLine{{ProductID: "8", Quantity: 1}})
		return nil
	}))
	_, err = store.Load(ctx, "u1")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}
