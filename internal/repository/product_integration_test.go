//go:build integration

package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductRepository_ConcurrentDecrementNeverOversells(t *testing.T) {
	cleanupTables(t)

	repo := NewProductRepository(testPool)
	ctx := context.Background()
	product := createProduct(t, 1, 10)

	var succeeded atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := repo.DecrementStock(ctx, product.ID, 1)
			if err == nil && ok {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	found, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(10), succeeded.Load())
	assert.Equal(t, 0, found.Stock)
}
