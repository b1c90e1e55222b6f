package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/storefront-api/internal/dto"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestProductKey(t *testing.T) {
	id := uuid.MustParse("6f1c1f0e-5d3c-4c71-9f61-2f6e6a0b8c11")
	assert.Equal(t, "product:6f1c1f0e-5d3c-4c71-9f61-2f6e6a0b8c11", ProductKey(id))
}

func TestProductCache_NilIsNoop(t *testing.T) {
	ctx := context.Background()
	for _, c := range []*ProductCache{nil, NewProductCache(nil, time.Minute)} {
		_, ok := c.Get(ctx, uuid.New())
		assert.False(t, ok)
		assert.NoError(t, c.Invalidate(ctx, uuid.New()))
		assert.NotPanics(t, func() { c.Set(ctx, dto.ProductResponse{ID: uuid.New()}) })
	}
}

func TestProductCache_SetGetWithTTL(t *testing.T) {
	mr, client := newTestRedis(t)
	c := NewProductCache(client, time.Minute)
	ctx := context.Background()

	resp := dto.ProductResponse{ID: uuid.New(), Name: "Lamp", Price: decimal.RequireFromString("19.99"), Stock: 4, Active: true}
	_, ok := c.Get(ctx, resp.ID)
	assert.False(t, ok)

	c.Set(ctx, resp)
	assert.Equal(t, time.Minute, mr.TTL(ProductKey(resp.ID)))

	got, ok := c.Get(ctx, resp.ID)
	require.True(t, ok)
	assert.Equal(t, "Lamp", got.Name)
	assert.Equal(t, 4, got.Stock)
	assert.True(t, got.Price.Equal(resp.Price))

	mr.FastForward(2 * time.Minute)
	_, ok = c.Get(ctx, resp.ID)
	assert.False(t, ok)
}

func TestProductCache_Invalidate(t *testing.T) {
	mr, client := newTestRedis(t)
	c := NewProductCache(client, time.Minute)
	ctx := context.Background()

	a, b, kept := uuid.New(), uuid.New(), uuid.New()
	for _, id := range []uuid.UUID{a, b, kept} {
		c.Set(ctx, dto.ProductResponse{ID: id})
	}

	require.NoError(t, c.Invalidate(ctx, a, b))
	assert.False(t, mr.Exists(ProductKey(a)))
	assert.False(t, mr.Exists(ProductKey(b)))
	assert.True(t, mr.Exists(ProductKey(kept)))

	require.NoError(t, c.Invalidate(ctx))
}

func TestProductCache_CorruptEntryIsMiss(t *testing.T) {
	mr, client := newTestRedis(t)
	c := NewProductCache(client, time.Minute)
	id := uuid.New()
	require.NoError(t, mr.Set(ProductKey(id), "{not json"))

	_, ok := c.Get(context.Background(), id)
	assert.False(t, ok)
}

func TestIdempotency_SeenRemember(t *testing.T) {
	mr, client := newTestRedis(t)
	idem := NewIdempotency(client, 24*time.Hour)
	ctx := context.Background()
	key := "order_event:order.placed:" + uuid.NewString()

	seen, err := idem.Seen(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, idem.Remember(ctx, key))
	assert.Equal(t, 24*time.Hour, mr.TTL(key))

	seen, err = idem.Seen(ctx, key)
	require.NoError(t, err)
	assert.True(t, seen)

	mr.FastForward(25 * time.Hour)
	seen, err = idem.Seen(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestIdempotency_RedisDown(t *testing.T) {
	mr, client := newTestRedis(t)
	idem := NewIdempotency(client, time.Hour)
	mr.Close()

	_, err := idem.Seen(context.Background(), "k")
	assert.ErrorContains(t, err, "check idempotency key")
	assert.ErrorContains(t, idem.Remember(context.Background(), "k"), "set idempotency key")
}
