package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

// EventPublisher delivers order events after the order change is committed.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event model.OrderEvent) error
}

// StockCache drops cached product views whose stock changed.
type StockCache interface {
	Invalidate(ctx context.Context, ids ...uuid.UUID) error
}

type OrderService struct {
	orderRepo repository.OrderRepository
	userRepo  repository.UserRepository
	tx        repository.Transactor
	ledger    *InventoryLedger
	access    *AccessControl
	publisher EventPublisher
	stock     StockCache
	maxItems  int
	log       *slog.Logger
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	tx repository.Transactor,
	ledger *InventoryLedger,
	access *AccessControl,
	publisher EventPublisher,
	stock StockCache,
	maxItems int,
	log *slog.Logger,
) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		userRepo:  userRepo,
		tx:        tx,
		ledger:    ledger,
		access:    access,
		publisher: publisher,
		stock:     stock,
		maxItems:  maxItems,
		log:       log,
	}
}

// PlaceOrder reserves stock for every item and records a pending order.
// Reservations and the order insert commit together or not at all.
func (s *OrderService) PlaceOrder(ctx context.Context, req dto.PlaceOrderRequest) (*model.Order, error) {
	caller, ok := s.access.ResolveCaller(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}

	user, err := s.userRepo.GetByID(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if s.maxItems > 0 && len(req.Items) > s.maxItems {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyItems, len(req.Items), s.maxItems)
	}

	var order *model.Order
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		order = &model.Order{
			UserID:          caller,
			Status:          model.OrderStatusPending,
			CustomerEmail:   user.Email,
			ShippingAddress: req.ShippingAddress,
			Items:           make([]model.OrderItem, len(req.Items)),
		}
		for i, item := range req.Items {
			order.Items[i] = model.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity}
		}

		for _, i := range lockOrder(order.Items) {
			price, err := s.ledger.Reserve(ctx, order.Items[i].ProductID, order.Items[i].Quantity)
			if err != nil {
				return err
			}
			order.Items[i].Price = price
		}

		total := decimal.Zero
		for _, line := range order.Items {
			total = total.Add(line.Subtotal())
		}
		order.Total = total

		if err := s.orderRepo.Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.stockChanged(ctx, model.OrderEventPlaced, order)
	return order, nil
}

// ListOwnOrders returns the caller's orders oldest first, or nothing for anonymous callers.
func (s *OrderService) ListOwnOrders(ctx context.Context) ([]model.Order, error) {
	caller, ok := s.access.ResolveCaller(ctx)
	if !ok {
		return []model.Order{}, nil
	}
	orders, err := s.orderRepo.ListByUserID(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) ListAllOrders(ctx context.Context) ([]model.Order, error) {
	if _, err := s.access.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	orders, err := s.orderRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	caller, ok := s.access.ResolveCaller(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if err := s.authorizeOrderAccess(ctx, caller, order); err != nil {
		return nil, err
	}
	return order, nil
}

// CancelOrder cancels a pending order and puts every line item back in stock,
// whether or not the product is still active.
func (s *OrderService) CancelOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	caller, ok := s.access.ResolveCaller(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}

	var order *model.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orderRepo.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return fmt.Errorf("get order: %w", err)
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if err := s.authorizeOrderAccess(ctx, caller, order); err != nil {
			return err
		}
		if order.Status != model.OrderStatusPending {
			return ErrInvalidOrderState
		}

		for _, i := range lockOrder(order.Items) {
			if err := s.ledger.Release(ctx, order.Items[i].ProductID, order.Items[i].Quantity); err != nil {
				return err
			}
		}
		if err := s.orderRepo.UpdateStatus(ctx, orderID, model.OrderStatusCancelled); err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}
		order.Status = model.OrderStatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.stockChanged(ctx, model.OrderEventCancelled, order)
	return order, nil
}

func (s *OrderService) authorizeOrderAccess(ctx context.Context, caller uuid.UUID, order *model.Order) error {
	if order.UserID == caller {
		return nil
	}
	admin, err := s.access.IsAdmin(ctx, caller)
	if err != nil {
		return err
	}
	if !admin {
		return ErrUnauthorized
	}
	return nil
}

// lockOrder returns item indexes sorted by product id. Touching product rows
// in one global order keeps concurrent transactions from deadlocking.
func lockOrder(items []model.OrderItem) []int {
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return bytes.Compare(items[a].ProductID[:], items[b].ProductID[:])
	})
	return idx
}

// stockChanged runs after commit. Both steps are best-effort.
func (s *OrderService) stockChanged(ctx context.Context, t model.OrderEventType, order *model.Order) {
	if s.stock != nil {
		ids := make([]uuid.UUID, 0, len(order.Items))
		for _, item := range order.Items {
			ids = append(ids, item.ProductID)
		}
		if err := s.stock.Invalidate(ctx, ids...); err != nil && s.log != nil {
			s.log.Error("invalidate product cache", "order_id", order.ID, "error", err)
		}
	}
	s.publish(ctx, t, order)
}

func (s *OrderService) publish(ctx context.Context, t model.OrderEventType, order *model.Order) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishOrderEvent(ctx, model.NewOrderEvent(t, order)); err != nil && s.log != nil {
		s.log.Error("publish order event", "type", t, "order_id", order.ID, "error", err)
	}
}
