package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/flicky/storefront-api/internal/cache"
	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

type ProductService struct {
	productRepo repository.ProductRepository
	access      *AccessControl
	cache       *cache.ProductCache
}

func NewProductService(productRepo repository.ProductRepository, access *AccessControl, productCache *cache.ProductCache) *ProductService {
	return &ProductService{productRepo: productRepo, access: access, cache: productCache}
}

func (s *ProductService) Create(ctx context.Context, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	if _, err := s.access.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	if !validPrice(req.Price) || req.Stock < 0 {
		return nil, ErrInvalidProduct
	}

	product := &model.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		Stock:       req.Stock,
		Active:      true,
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	resp := toProductResponse(product)
	return &resp, nil
}

func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	if cached, ok := s.cache.Get(ctx, id); ok {
		return cached, nil
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	resp := toProductResponse(product)
	s.cache.Set(ctx, resp)
	return &resp, nil
}

func (s *ProductService) ListActive(ctx context.Context) (*dto.ProductListResponse, error) {
	products, err := s.productRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return toProductListResponse(products), nil
}

func (s *ProductService) ListAll(ctx context.Context) (*dto.ProductListResponse, error) {
	if _, err := s.access.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	products, err := s.productRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return toProductListResponse(products), nil
}

// Update writes only the supplied fields; stock is untouched unless the patch sets it.
func (s *ProductService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	if _, err := s.access.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	if (req.Price != nil && !validPrice(*req.Price)) || (req.Stock != nil && *req.Stock < 0) {
		return nil, ErrInvalidProduct
	}

	product, err := s.productRepo.Patch(ctx, id, model.ProductPatch{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		Stock:       req.Stock,
		Active:      req.Active,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.invalidateCache(ctx, id)
	resp := toProductResponse(product)
	return &resp, nil
}

// Delete deactivates the product; rows are never removed.
func (s *ProductService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.access.RequireAdmin(ctx); err != nil {
		return err
	}
	if err := s.productRepo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("delete product: %w", err)
	}
	s.invalidateCache(ctx, id)
	return nil
}

func (s *ProductService) invalidateCache(ctx context.Context, id uuid.UUID) {
	_ = s.cache.Invalidate(ctx, id)
}

// validPrice rejects negative prices and prices finer than a cent, which
// storage would round.
func validPrice(price decimal.Decimal) bool {
	return !price.IsNegative() && price.Equal(price.Round(2))
}

func toProductListResponse(products []model.Product) *dto.ProductListResponse {
	items := make([]dto.ProductResponse, 0, len(products))
	for i := range products {
		items = append(items, toProductResponse(&products[i]))
	}
	return &dto.ProductListResponse{Products: items, Total: len(items)}
}

func toProductResponse(p *model.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		ImageURL:    p.ImageURL,
		Stock:       p.Stock,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
