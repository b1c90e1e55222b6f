package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/storefront-api/internal/repository"
)

// InventoryLedger moves product stock for order line items.
type InventoryLedger struct {
	productRepo repository.ProductRepository
}

func NewInventoryLedger(productRepo repository.ProductRepository) *InventoryLedger {
	return &InventoryLedger{productRepo: productRepo}
}

// Reserve takes quantity units of the product and returns its current unit price.
// The check and the decrement are a single conditional update, so concurrent
// reservations cannot oversell.
func (l *InventoryLedger) Reserve(ctx context.Context, productID uuid.UUID, quantity int) (decimal.Decimal, error) {
	if quantity < 1 {
		return decimal.Zero, ErrInvalidQuantity
	}

	price, ok, err := l.productRepo.DecrementStock(ctx, productID, quantity)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reserve stock: %w", err)
	}
	if ok {
		return price, nil
	}

	product, err := l.productRepo.GetByID(ctx, productID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get product: %w", err)
	}
	if product == nil || !product.Active {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return decimal.Zero, fmt.Errorf("%w for %s", ErrInsufficientStock, product.Name)
}

// Release puts quantity units back. Products that no longer exist are skipped;
// inactive products are restocked like any other.
func (l *InventoryLedger) Release(ctx context.Context, productID uuid.UUID, quantity int) error {
	if _, err := l.productRepo.IncrementStock(ctx, productID, quantity); err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	return nil
}
