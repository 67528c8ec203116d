//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/infra/db"
	repo "storefront/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

func setupPostgres(t *testing.T) *gorm.DB {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	gdb, err := db.Connect(config.Config{DBDriver: "postgres", DatabaseURL: dsn})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func TestPostgres_OrderLifecycle(t *testing.T) {
	ctx := context.Background()
	gdb := setupPostgres(t)
	orders := NewOrderGormRepository(gdb)
	items := NewOrderItemGormRepository(gdb)

	o, err := orders.Insert(ctx, model.Order{UserID: "u1", Total: dec("39.98"), Status: model.OrderStatusPending})
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)

	_, err = items.InsertBulk(ctx, []model.OrderItem{{OrderID: o.ID, ProductID: "1", Quantity: 2, PriceAtPurchase: dec("19.99")}})
	require.NoError(t, err)

	got, err := orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.Total.Equal(dec("39.98")))

	require.NoError(t, orders.Delete(ctx, o.ID))
	listed, err := items.ListByOrderID(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestPostgres_ForeignKeyViolationIsConstraintError(t *testing.T) {
	ctx := context.Background()
	items := NewOrderItemGormRepository(setupPostgres(t))

	_, err := items.InsertBulk(ctx, []model.OrderItem{{OrderID: "00000000-0000-0000-0000-000000000000", ProductID: "1", Quantity: 1, PriceAtPurchase: dec("1")}})
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.ErrConstraint)
	assert.Contains(t, err.Error(), "foreign key")
}
