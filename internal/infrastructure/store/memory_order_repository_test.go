package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/digital-storefront/internal/domain/order"
)

func TestMemoryOrderRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryOrderRepository()
	ctx := context.Background()
	o := newTestOrder("T-1", "cust-1", time.Now())

	stored, created, err := repo.CreateOrder(ctx, o)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, o.ID, stored.ID)

	fetched, err := repo.GetByTransactionID(ctx, "T-1")
	require.NoError(t, err)
	assert.Equal(t, o, *fetched)
}

func TestMemoryOrderRepository_DuplicateTransaction(t *testing.T) {
	repo := NewMemoryOrderRepository()
	ctx := context.Background()
	first := newTestOrder("T-1", "cust-1", time.Now())
	second := newTestOrder("T-1", "cust-1", time.Now())

	_, created, err := repo.CreateOrder(ctx, first)
	require.NoError(t, err)
	require.True(t, created)

	stored, created, err := repo.CreateOrder(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, stored.ID)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemoryOrderRepository_NotFound(t *testing.T) {
	repo := NewMemoryOrderRepository()

	_, err := repo.GetByTransactionID(context.Background(), "missing")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestMemoryOrderRepository_ListNewestFirst(t *testing.T) {
	repo := NewMemoryOrderRepository()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	_, _, err := repo.CreateOrder(ctx, newTestOrder("T-1", "cust-1", base))
	require.NoError(t, err)
	_, _, err = repo.CreateOrder(ctx, newTestOrder("T-2", "cust-2", base.Add(time.Hour)))
	require.NoError(t, err)
	_, _, err = repo.CreateOrder(ctx, newTestOrder("T-3", "cust-1", base.Add(2*time.Hour)))
	require.NoError(t, err)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "T-3", all[0].TransactionID)
	assert.Equal(t, "T-1", all[2].TransactionID)

	mine, err := repo.ListByCustomer(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "T-3", mine[0].TransactionID)
	assert.Equal(t, "T-1", mine[1].TransactionID)
}

func TestMemoryOrderRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryOrderRepository()
	ctx := context.Background()
	_, _, err := repo.CreateOrder(ctx, newTestOrder("T-1", "cust-1", time.Now()))
	require.NoError(t, err)

	fetched, err := repo.GetByTransactionID(ctx, "T-1")
	require.NoError(t, err)
	fetched.Items[0].Quantity = 99

	again, err := repo.GetByTransactionID(ctx, "T-1")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Items[0].Quantity)
}
