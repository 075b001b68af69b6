package catalog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/docstore"
	"github.com/utafrali/storefront/internal/docstore/memory"
	"github.com/utafrali/storefront/internal/domain"
)

func seed(t *testing.T) *memory.Collection[domain.Product] {
	t.Helper()
	coll := memory.New[domain.Product]("products")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	products := []struct {
		name     string
		category string
		price    float64
		stock    int64
	}{
		{"Gaming Laptop", "Laptops", 1500, 3},
		{"Office Laptop", "Laptops", 700, 10},
		{"USB-C Cable (2m)", "Accessories", 12.5, 200},
		{"Laptop Stand", "Accessories", 45, 0},
		{"Smartphone X", "Phones", 999, 7},
		{"Phone Case", "Accessories", 15, 50},
	}
	for i, p := range products {
		require.NoError(t, coll.Insert(context.Background(), &domain.Product{
			ID:        fmt.Sprintf("p%d", i+1),
			Name:      p.name,
			Category:  p.category,
			Price:     p.price,
			Stock:     p.stock,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			Version:   1,
		}))
	}
	return coll
}

func names(ps []domain.Product) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func TestBuildFilter(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
		want   docstore.Filter
	}{
		{"empty", map[string]string{}, docstore.Filter{}},
		{
			"control keys dropped",
			map[string]string{"page": "2", "limit": "10", "keyword": ""},
			docstore.Filter{},
		},
		{
			"keyword searches name",
			map[string]string{"keyword": "Lap"},
			docstore.Filter{docstore.Contains("name", "Lap")},
		},
		{
			"range and exact match",
			map[string]string{"price[gte]": "10", "price[lt]": "100", "category": "Accessories"},
			docstore.Filter{
				docstore.Eq("category", "Accessories"),
				docstore.Gte("price", 10.0),
				docstore.Lt("price", 100.0),
			},
		},
		{"integer field", map[string]string{"stock[lte]": "5"}, docstore.Filter{docstore.Lte("stock", int64(5))}},
		{
			"date field",
			map[string]string{"created_at[gt]": "2024-01-01"},
			docstore.Filter{docstore.Gt("created_at", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))},
		},
		{"malformed number", map[string]string{"price[gte]": "cheap"}, docstore.Filter{docstore.None()}},
		{"unknown field", map[string]string{"password_hash": "x"}, docstore.Filter{docstore.None()}},
		{"unknown operator", map[string]string{"price[ne]": "5"}, docstore.Filter{docstore.None()}},
		{"range on text field", map[string]string{"name[gt]": "M"}, docstore.Filter{docstore.None()}},
		{"operator injection", map[string]string{"price[$where]": "1"}, docstore.Filter{docstore.None()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildFilter(tt.params, ProductSchema))
		})
	}
}

func TestBuildFilter_Idempotent(t *testing.T) {
	params := map[string]string{"keyword": "phone", "price[gt]": "10", "category": "Phones", "stock[gte]": "1"}
	assert.Equal(t, BuildFilter(params, ProductSchema), BuildFilter(params, ProductSchema))
}

func TestPipeline_Search(t *testing.T) {
	p := NewPipeline(seed(t), ProductSchema, 10)

	res, err := p.Run(context.Background(), map[string]string{"keyword": "LAPTOP"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Gaming Laptop", "Office Laptop", "Laptop Stand"}, names(res.Items))
	assert.Equal(t, int64(3), res.Count)
	assert.Equal(t, int64(6), res.Total)
}

func TestPipeline_KeywordIsLiteral(t *testing.T) {
	p := NewPipeline(seed(t), ProductSchema, 10)

	res, err := p.Run(context.Background(), map[string]string{"keyword": "(2m)"})
	require.NoError(t, err)
	assert.Equal(t, []string{"USB-C Cable (2m)"}, names(res.Items))

	res, err = p.Run(context.Background(), map[string]string{"keyword": ".*"})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestPipeline_RangeFilter(t *testing.T) {
	p := NewPipeline(seed(t), ProductSchema, 10)

	res, err := p.Run(context.Background(), map[string]string{
		"price[gte]": "15",
		"price[lte]": "999",
		"keyword":    "phone",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Smartphone X", "Phone Case"}, names(res.Items))
}

func TestPipeline_MalformedValueMatchesNothing(t *testing.T) {
	p := NewPipeline(seed(t), ProductSchema, 10)

	res, err := p.Run(context.Background(), map[string]string{"price[gt]": "abc"})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, int64(0), res.Count)
	assert.Equal(t, int64(6), res.Total)
}

func TestPipeline_Pagination(t *testing.T) {
	p := NewPipeline(seed(t), ProductSchema, 0)
	require.Equal(t, DefaultPageSize, p.PageSize())

	first, err := p.Run(context.Background(), map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Gaming Laptop", "Office Laptop", "USB-C Cable (2m)", "Laptop Stand"}, names(first.Items))
	assert.Equal(t, 1, first.Page)

	second, err := p.Run(context.Background(), map[string]string{"page": "2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Smartphone X", "Phone Case"}, names(second.Items))
	assert.Equal(t, int64(6), second.Count, "count ignores pagination")

	beyond, err := p.Run(context.Background(), map[string]string{"page": "9"})
	require.NoError(t, err)
	assert.Empty(t, beyond.Items)
	assert.Equal(t, int64(6), beyond.Count)

	for _, huge := range []string{"4611686018427387905", "9223372036854775807"} {
		far, err := p.Run(context.Background(), map[string]string{"page": huge})
		require.NoError(t, err)
		assert.Empty(t, far.Items, "page %s", huge)
		assert.Equal(t, int64(6), far.Count)
	}

	invalid, err := p.Run(context.Background(), map[string]string{"page": "-3"})
	require.NoError(t, err)
	assert.Equal(t, 1, invalid.Page)
	assert.Equal(t, names(first.Items), names(invalid.Items))
}

func TestPipeline_FilteredCountAcrossPages(t *testing.T) {
	p := NewPipeline(seed(t), ProductSchema, 2)

	res, err := p.Run(context.Background(), map[string]string{"category": "Accessories"})
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, int64(3), res.Count)
	assert.Equal(t, 2, res.PageSize)
}
