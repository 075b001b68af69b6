// Package cache is a Redis read-through cache for product documents.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/domain"
)

const keyPrefix = "product:"

// ProductCache stores products under their id and their slug.
type ProductCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewProductCache creates a cache whose entries expire after ttl.
func NewProductCache(client redis.UniversalClient, ttl time.Duration) *ProductCache {
	return &ProductCache{client: client, ttl: ttl}
}

// Get returns the product cached under key (an id or slug). A miss returns
// (nil, false, nil).
func (c *ProductCache) Get(ctx context.Context, key string) (*domain.Product, bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get product: %w", err)
	}

	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, true, nil
}

// Set caches p under its id and slug.
func (c *ProductCache) Set(ctx context.Context, p *domain.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}
	pipe := c.client.TxPipeline()
	for _, k := range keys(p) {
		pipe.Set(ctx, k, data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set product: %w", err)
	}
	return nil
}

// Invalidate drops the entries of p.
func (c *ProductCache) Invalidate(ctx context.Context, p *domain.Product) error {
	if err := c.client.Del(ctx, keys(p)...).Err(); err != nil {
		return fmt.Errorf("redis del product: %w", err)
	}
	return nil
}

// InvalidateID drops the entry cached under id. A slug entry for the same
// product expires on its own.
func (c *ProductCache) InvalidateID(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis del product: %w", err)
	}
	return nil
}

// Flush drops every cached product.
func (c *ProductCache) Flush(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan products: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, batch...).Err(); err != nil {
		return fmt.Errorf("redis del products: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (c *ProductCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func keys(p *domain.Product) []string {
	out := []string{keyPrefix + p.ID}
	if p.Slug != "" && p.Slug != p.ID {
		out = append(out, keyPrefix+p.Slug)
	}
	return out
}
