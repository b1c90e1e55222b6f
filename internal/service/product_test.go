package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/storefront-api/internal/cache"
	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/model"
)

type mockProductRepo struct {
	products    map[uuid.UUID]*model.Product
	order       []uuid.UUID
	decrements  []uuid.UUID
	beforePatch func()
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{products: make(map[uuid.UUID]*model.Product)}
}

func (m *mockProductRepo) add(price float64, stock int) *model.Product {
	p := &model.Product{ID: uuid.New(), Name: "P", Price: decimal.NewFromFloat(price), Stock: stock, Active: true}
	m.products[p.ID] = p
	m.order = append(m.order, p.ID)
	return p
}

func (m *mockProductRepo) snapshot() map[uuid.UUID]model.Product {
	snap := make(map[uuid.UUID]model.Product, len(m.products))
	for id, p := range m.products {
		snap[id] = *p
	}
	return snap
}

func (m *mockProductRepo) restore(snap map[uuid.UUID]model.Product) {
	for id, p := range snap {
		if cur, ok := m.products[id]; ok {
			*cur = p
		}
	}
}

func (m *mockProductRepo) Create(_ context.Context, p *model.Product) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	m.products[p.ID] = p
	m.order = append(m.order, p.ID)
	return nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepo) ListActive(_ context.Context) ([]model.Product, error) {
	var out []model.Product
	for _, id := range m.order {
		if p := m.products[id]; p.Active {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) ListAll(_ context.Context) ([]model.Product, error) {
	var out []model.Product
	for _, id := range m.order {
		out = append(out, *m.products[id])
	}
	return out, nil
}

func (m *mockProductRepo) Patch(_ context.Context, id uuid.UUID, patch model.ProductPatch) (*model.Product, error) {
	if m.beforePatch != nil {
		m.beforePatch()
	}
	p, ok := m.products[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.ImageURL != nil {
		p.ImageURL = patch.ImageURL
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.Active != nil {
		p.Active = *patch.Active
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	p, ok := m.products[id]
	if !ok {
		return pgx.ErrNoRows
	}
	p.Active = false
	return nil
}

func (m *mockProductRepo) DecrementStock(_ context.Context, id uuid.UUID, quantity int) (decimal.Decimal, bool, error) {
	m.decrements = append(m.decrements, id)
	p, ok := m.products[id]
	if !ok || !p.Active || p.Stock < quantity {
		return decimal.Zero, false, nil
	}
	p.Stock -= quantity
	return p.Price, true, nil
}

func (m *mockProductRepo) IncrementStock(_ context.Context, id uuid.UUID, quantity int) (bool, error) {
	p, ok := m.products[id]
	if !ok {
		return false, nil
	}
	p.Stock += quantity
	return true, nil
}

func newProductTestService() (*ProductService, *mockProductRepo, uuid.UUID) {
	repo := newMockProductRepo()
	roles := newMockRoleRepo()
	adminID := uuid.New()
	roles.roles[adminID] = model.RoleAdmin
	return NewProductService(repo, NewAccessControl(roles, newMockUserRepo()), nil), repo, adminID
}

func TestProductService_Create(t *testing.T) {
	svc, _, adminID := newProductTestService()

	resp, err := svc.Create(asCaller(adminID), dto.CreateProductRequest{
		Name: "Test", Price: decimal.NewFromFloat(9.99), Stock: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, "Test", resp.Name)
	assert.Equal(t, 100, resp.Stock)
	assert.True(t, resp.Active)
}

func TestProductService_Create_RequiresAdmin(t *testing.T) {
	svc, repo, _ := newProductTestService()
	req := dto.CreateProductRequest{Name: "Test", Price: decimal.NewFromFloat(9.99), Stock: 1}

	_, err := svc.Create(asCaller(uuid.New()), req)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, repo.products)
}

func TestProductService_Create_RejectsNegativeValues(t *testing.T) {
	svc, _, adminID := newProductTestService()

	_, err := svc.Create(asCaller(adminID), dto.CreateProductRequest{Name: "T", Price: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, ErrInvalidProduct)
	_, err = svc.Create(asCaller(adminID), dto.CreateProductRequest{Name: "T", Price: decimal.NewFromInt(1), Stock: -1})
	assert.ErrorIs(t, err, ErrInvalidProduct)
}

func TestProductService_GetByID_NotFound(t *testing.T) {
	svc, _, _ := newProductTestService()
	_, err := svc.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductService_ListActive_HidesDeactivated(t *testing.T) {
	svc, repo, adminID := newProductTestService()
	kept := repo.add(1, 1)
	gone := repo.add(2, 2)

	require.NoError(t, svc.Delete(asCaller(adminID), gone.ID))

	resp, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Products, 1)
	assert.Equal(t, kept.ID, resp.Products[0].ID)

	all, err := svc.ListAll(asCaller(adminID))
	require.NoError(t, err)
	assert.Equal(t, 2, all.Total)

	_, err = svc.ListAll(asCaller(uuid.New()))
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestProductService_Update_Patch(t *testing.T) {
	svc, repo, adminID := newProductTestService()
	p := repo.add(10, 5)
	name := "Renamed"
	active := false

	resp, err := svc.Update(asCaller(adminID), p.ID, dto.UpdateProductRequest{Name: &name, Active: &active})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", resp.Name)
	assert.False(t, resp.Active)
	assert.Equal(t, 5, resp.Stock)
	assert.True(t, resp.Price.Equal(decimal.NewFromInt(10)))

	negative := -3
	_, err = svc.Update(asCaller(adminID), p.ID, dto.UpdateProductRequest{Stock: &negative})
	assert.ErrorIs(t, err, ErrInvalidProduct)

	_, err = svc.Update(asCaller(adminID), uuid.New(), dto.UpdateProductRequest{Name: &name})
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = svc.Update(asCaller(uuid.New()), p.ID, dto.UpdateProductRequest{Name: &name})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestProductService_Update_KeepsConcurrentReservation(t *testing.T) {
	svc, repo, adminID := newProductTestService()
	p := repo.add(10, 5)
	ledger := NewInventoryLedger(repo)
	repo.beforePatch = func() {
		_, err := ledger.Reserve(context.Background(), p.ID, 3)
		require.NoError(t, err)
	}

	name := "renamed"
	resp, err := svc.Update(asCaller(adminID), p.ID, dto.UpdateProductRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed", resp.Name)
	assert.Equal(t, 2, resp.Stock)
	assert.Equal(t, 2, repo.products[p.ID].Stock)
}

func TestProductService_RejectsSubCentPrices(t *testing.T) {
	svc, repo, adminID := newProductTestService()
	ctx := asCaller(adminID)

	_, err := svc.Create(ctx, dto.CreateProductRequest{Name: "T", Price: decimal.RequireFromString("10.005"), Stock: 1})
	assert.ErrorIs(t, err, ErrInvalidProduct)
	assert.Empty(t, repo.products)

	resp, err := svc.Create(ctx, dto.CreateProductRequest{Name: "T", Price: decimal.RequireFromString("10.50"), Stock: 1})
	require.NoError(t, err)
	assert.Equal(t, "10.5", resp.Price.String())

	price := decimal.RequireFromString("1.234")
	_, err = svc.Update(ctx, resp.ID, dto.UpdateProductRequest{Price: &price})
	assert.ErrorIs(t, err, ErrInvalidProduct)
	assert.True(t, repo.products[resp.ID].Price.Equal(decimal.RequireFromString("10.5")))
}

func TestProductService_Delete_IsSoft(t *testing.T) {
	svc, repo, adminID := newProductTestService()
	p := repo.add(1, 1)

	require.NoError(t, svc.Delete(asCaller(adminID), p.ID))
	require.Contains(t, repo.products, p.ID)
	assert.False(t, repo.products[p.ID].Active)

	assert.ErrorIs(t, svc.Delete(asCaller(adminID), uuid.New()), ErrProductNotFound)
	assert.ErrorIs(t, svc.Delete(asCaller(uuid.New()), p.ID), ErrUnauthorized)
}

func newCachedProductTestService(t *testing.T) (*ProductService, *mockProductRepo, *miniredis.Miniredis, uuid.UUID) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMockProductRepo()
	roles := newMockRoleRepo()
	adminID := uuid.New()
	roles.roles[adminID] = model.RoleAdmin
	svc := NewProductService(repo, NewAccessControl(roles, newMockUserRepo()), cache.NewProductCache(client, time.Minute))
	return svc, repo, mr, adminID
}

func TestProductService_GetByID_ServesFromCache(t *testing.T) {
	svc, repo, mr, _ := newCachedProductTestService(t)
	p := repo.add(10, 5)
	ctx := context.Background()

	first, err := svc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Stock)
	assert.True(t, mr.Exists(cache.ProductKey(p.ID)))

	// A write that bypasses the service stays invisible until the entry is dropped.
	repo.products[p.ID].Stock = 1
	second, err := svc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, second.Stock)

	mr.FastForward(2 * time.Minute)
	third, err := svc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, third.Stock)
}

func TestProductService_UpdateEvictsCache(t *testing.T) {
	svc, repo, mr, adminID := newCachedProductTestService(t)
	p := repo.add(10, 5)

	_, err := svc.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.True(t, mr.Exists(cache.ProductKey(p.ID)))

	name := "Renamed"
	_, err = svc.Update(asCaller(adminID), p.ID, dto.UpdateProductRequest{Name: &name})
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.ProductKey(p.ID)))

	got, err := svc.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
}

func TestProductService_DeleteEvictsCache(t *testing.T) {
	svc, repo, mr, adminID := newCachedProductTestService(t)
	p := repo.add(10, 5)

	_, err := svc.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.True(t, mr.Exists(cache.ProductKey(p.ID)))

	require.NoError(t, svc.Delete(asCaller(adminID), p.ID))
	assert.False(t, mr.Exists(cache.ProductKey(p.ID)))

	got, err := svc.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
}
