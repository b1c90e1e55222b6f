package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/flicky/storefront-api/internal/dto"
)

// ProductCache is a read-through cache for single product lookups.
// A nil *ProductCache, or one without a client, is a no-op.
type ProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProductCache(client *redis.Client, ttl time.Duration) *ProductCache {
	return &ProductCache{client: client, ttl: ttl}
}

func ProductKey(id uuid.UUID) string {
	return "product:" + id.String()
}

func (c *ProductCache) enabled() bool {
	return c != nil && c.client != nil
}

func (c *ProductCache) Get(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, bool) {
	if !c.enabled() {
		return nil, false
	}
	cached, err := c.client.Get(ctx, ProductKey(id)).Result()
	if err != nil {
		return nil, false
	}
	var resp dto.ProductResponse
	if json.Unmarshal([]byte(cached), &resp) != nil {
		return nil, false
	}
	return &resp, true
}

func (c *ProductCache) Set(ctx context.Context, resp dto.ProductResponse) {
	if !c.enabled() {
		return
	}
	if data, err := json.Marshal(resp); err == nil {
		c.client.Set(ctx, ProductKey(resp.ID), data, c.ttl)
	}
}

func (c *ProductCache) Invalidate(ctx context.Context, ids ...uuid.UUID) error {
	if !c.enabled() || len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, ProductKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate products: %w", err)
	}
	return nil
}

// Idempotency remembers processed message keys in Redis.
type Idempotency struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotency(client *redis.Client, ttl time.Duration) *Idempotency {
	return &Idempotency{client: client, ttl: ttl}
}

func (i *Idempotency) Seen(ctx context.Context, key string) (bool, error) {
	n, err := i.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("check idempotency key: %w", err)
	}
	return n > 0, nil
}

func (i *Idempotency) Remember(ctx context.Context, key string) error {
	if err := i.client.Set(ctx, key, "1", i.ttl).Err(); err != nil {
		return fmt.Errorf("set idempotency key: %w", err)
	}
	return nil
}
