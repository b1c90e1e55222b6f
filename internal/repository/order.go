package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/storefront-api/internal/model"
)

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	// GetByIDForUpdate locks the order row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Order, error)
	ListAll(ctx context.Context) ([]model.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) error
}

type pgOrderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &pgOrderRepo{pool: pool}
}

const orderColumns = `id, user_id, status, total, customer_email, shipping_address, created_at, updated_at`

func scanOrder(row pgx.Row, o *model.Order) error {
	return row.Scan(&o.ID, &o.UserID, &o.Status, &o.Total, &o.CustomerEmail, &o.ShippingAddress, &o.CreatedAt, &o.UpdatedAt)
}

func (r *pgOrderRepo) Create(ctx context.Context, order *model.Order) error {
	q := conn(ctx, r.pool)
	order.ID = uuid.New()
	err := q.QueryRow(ctx,
		`INSERT INTO orders (id, user_id, status, total, customer_email, shipping_address, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW()) RETURNING created_at, updated_at`,
		order.ID, order.UserID, order.Status, order.Total, order.CustomerEmail, order.ShippingAddress,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Items {
		order.Items[i].ID = uuid.New()
		order.Items[i].OrderID = order.ID
		_, err = q.Exec(ctx,
			`INSERT INTO order_items (id, order_id, position, product_id, quantity, price)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			order.Items[i].ID, order.ID, i, order.Items[i].ProductID, order.Items[i].Quantity, order.Items[i].Price,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (r *pgOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *pgOrderRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *pgOrderRepo) get(ctx context.Context, query string, id uuid.UUID) (*model.Order, error) {
	order := &model.Order{}
	if err := scanOrder(conn(ctx, r.pool).QueryRow(ctx, query, id), order); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	orders := []model.Order{*order}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *pgOrderRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY seq`, userID)
}

func (r *pgOrderRepo) ListAll(ctx context.Context) ([]model.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY seq`)
}

func (r *pgOrderRepo) list(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		var o model.Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	rows.Close()

	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// loadItems fills Items for every order with a single query, keeping line item order.
func (r *pgOrderRepo) loadItems(ctx context.Context, orders []model.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, 0, len(orders))
	index := make(map[uuid.UUID]int, len(orders))
	for i, o := range orders {
		ids = append(ids, o.ID.String())
		index[o.ID] = i
	}

	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id, order_id, product_id, quantity, price FROM order_items
		 WHERE order_id = ANY($1::uuid[]) ORDER BY order_id, position`, ids,
	)
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return rows.Err()
}

func (r *pgOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) error {
	ct, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, status,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
