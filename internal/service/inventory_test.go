package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryLedger_Reserve(t *testing.T) {
	repo := newMockProductRepo()
	ledger := NewInventoryLedger(repo)
	p := repo.add(10, 5)

	price, err := ledger.Reserve(context.Background(), p.ID, 3)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 2, repo.products[p.ID].Stock)
}

func TestInventoryLedger_Reserve_InsufficientStock(t *testing.T) {
	repo := newMockProductRepo()
	ledger := NewInventoryLedger(repo)
	p := repo.add(10, 2)

	_, err := ledger.Reserve(context.Background(), p.ID, 5)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 2, repo.products[p.ID].Stock)
}

func TestInventoryLedger_Reserve_NotFound(t *testing.T) {
	repo := newMockProductRepo()
	ledger := NewInventoryLedger(repo)
	inactive := repo.add(10, 5)
	inactive.Active = false

	_, err := ledger.Reserve(context.Background(), uuid.New(), 1)
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = ledger.Reserve(context.Background(), inactive.ID, 1)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Equal(t, 5, inactive.Stock)
}

func TestInventoryLedger_Reserve_InvalidQuantity(t *testing.T) {
	repo := newMockProductRepo()
	ledger := NewInventoryLedger(repo)
	p := repo.add(10, 5)

	_, err := ledger.Reserve(context.Background(), p.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = ledger.Reserve(context.Background(), p.ID, -2)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Equal(t, 5, p.Stock)
}

func TestInventoryLedger_Release(t *testing.T) {
	repo := newMockProductRepo()
	ledger := NewInventoryLedger(repo)
	p := repo.add(10, 1)
	p.Active = false

	require.NoError(t, ledger.Release(context.Background(), p.ID, 4))
	assert.Equal(t, 5, p.Stock)

	assert.NoError(t, ledger.Release(context.Background(), uuid.New(), 4))
}

func TestInventoryLedger_BalancedSequenceKeepsStockNonNegative(t *testing.T) {
	repo := newMockProductRepo()
	ledger := NewInventoryLedger(repo)
	p := repo.add(1, 7)
	ctx := context.Background()

	quantities := []int{3, 4, 1, 7, 2, 5}
	var held []int
	for _, q := range quantities {
		if _, err := ledger.Reserve(ctx, p.ID, q); err == nil {
			held = append(held, q)
		} else {
			assert.ErrorIs(t, err, ErrInsufficientStock)
		}
		assert.GreaterOrEqual(t, p.Stock, 0)
	}
	for _, q := range held {
		require.NoError(t, ledger.Release(ctx, p.ID, q))
		assert.GreaterOrEqual(t, p.Stock, 0)
	}
	assert.Equal(t, 7, p.Stock)
}
