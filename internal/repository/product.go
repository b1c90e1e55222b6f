package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/flicky/storefront-api/internal/model"
)

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	ListActive(ctx context.Context) ([]model.Product, error)
	ListAll(ctx context.Context) ([]model.Product, error)
	// Patch writes only the non-nil fields of patch and returns the stored row.
	// It returns pgx.ErrNoRows when the product does not exist.
	Patch(ctx context.Context, id uuid.UUID, patch model.ProductPatch) (*model.Product, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	// DecrementStock subtracts quantity only when the product is active and
	// has enough stock. ok is false when the condition did not hold.
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (price decimal.Decimal, ok bool, err error)
	// IncrementStock reports false when the product row does not exist.
	IncrementStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error)
}

type pgProductRepo struct{ pool *pgxpool.Pool }

func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &pgProductRepo{pool: pool}
}

const productColumns = `id, name, description, price, image_url, stock, is_active, created_at, updated_at`

func scanProduct(row pgx.Row, p *model.Product) error {
	return row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
}

func (r *pgProductRepo) Create(ctx context.Context, product *model.Product) error {
	product.ID = uuid.New()
	query := `INSERT INTO products (id, name, description, price, image_url, stock, is_active, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW()) RETURNING price, created_at, updated_at`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		product.ID, product.Name, product.Description, product.Price, product.ImageURL, product.Stock, product.Active,
	).Scan(&product.Price, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (r *pgProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	p := &model.Product{}
	err := scanProduct(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id), p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (r *pgProductRepo) ListActive(ctx context.Context) ([]model.Product, error) {
	return r.list(ctx, `SELECT `+productColumns+` FROM products WHERE is_active = TRUE ORDER BY created_at, id`)
}

func (r *pgProductRepo) ListAll(ctx context.Context) ([]model.Product, error) {
	return r.list(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at, id`)
}

func (r *pgProductRepo) list(ctx context.Context, query string) ([]model.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		var p model.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (r *pgProductRepo) Patch(ctx context.Context, id uuid.UUID, patch model.ProductPatch) (*model.Product, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{id}
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Name != nil {
		set("name", *patch.Name)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Price != nil {
		set("price", *patch.Price)
	}
	if patch.ImageURL != nil {
		set("image_url", *patch.ImageURL)
	}
	if patch.Stock != nil {
		set("stock", *patch.Stock)
	}
	if patch.Active != nil {
		set("is_active", *patch.Active)
	}

	query := `UPDATE products SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + productColumns
	p := &model.Product{}
	if err := scanProduct(conn(ctx, r.pool).QueryRow(ctx, query, args...), p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("patch product: %w", err)
	}
	return p, nil
}

func (r *pgProductRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	ct, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE products SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("deactivate product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgProductRepo) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (decimal.Decimal, bool, error) {
	var price decimal.Decimal
	err := conn(ctx, r.pool).QueryRow(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = NOW()
		 WHERE id = $1 AND is_active = TRUE AND stock >= $2
		 RETURNING price`,
		id, quantity,
	).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("decrement stock: %w", err)
	}
	return price, true, nil
}

func (r *pgProductRepo) IncrementStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error) {
	ct, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1`, id, quantity,
	)
	if err != nil {
		return false, fmt.Errorf("increment stock: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
