package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
)

func newTestCache(t *testing.T) (*ProductCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewProductCache(client, time.Minute), mr
}

func TestProductCache_SetGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	p := &domain.Product{ID: "p1", Slug: "desk-lamp", Name: "Desk Lamp", Price: 20, Version: 2}

	_, ok, err := c.Get(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, p))

	byID, ok, err := c.Get(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Desk Lamp", byID.Name)

	bySlug, ok, err := c.Get(ctx, "desk-lamp")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), bySlug.Version)
}

func TestProductCache_Expiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, &domain.Product{ID: "p1"}))

	mr.FastForward(2 * time.Minute)
	_, ok, err := c.Get(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProductCache_Invalidate(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	p := &domain.Product{ID: "p1", Slug: "lamp"}
	require.NoError(t, c.Set(ctx, p))

	require.NoError(t, c.Invalidate(ctx, p))
	assert.False(t, mr.Exists("product:p1"))
	assert.False(t, mr.Exists("product:lamp"))
}

func TestProductCache_Flush(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, &domain.Product{ID: "p1", Slug: "a"}))
	require.NoError(t, c.Set(ctx, &domain.Product{ID: "p2", Slug: "b"}))
	require.NoError(t, mr.Set("session:x", "keep"))

	require.NoError(t, c.Flush(ctx))
	assert.Equal(t, []string{"session:x"}, mr.Keys())
	require.NoError(t, c.Flush(ctx))
}

func TestProductCache_Unavailable(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	_, _, err := c.Get(context.Background(), "p1")
	assert.Error(t, err)
	assert.Error(t, c.Ping(context.Background()))
}
