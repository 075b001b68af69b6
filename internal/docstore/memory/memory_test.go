package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/docstore"
	"github.com/utafrali/storefront/pkg/validator"
)

type item struct {
	ID        string    `json:"id"`
	Name      string    `json:"name" validate:"required"`
	Email     string    `json:"email,omitempty"`
	Price     float64   `json:"price" validate:"gt=0"`
	Stock     int64     `json:"stock"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	Version   int64     `json:"version"`
}

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T) *Collection[item] {
	t.Helper()
	c := New[item]("items", "email")
	ctx := context.Background()
	docs := []item{
		{ID: "a", Name: "Red Lamp", Price: 10, Stock: 5, Active: true, CreatedAt: base.Add(2 * time.Hour), Version: 1},
		{ID: "b", Name: "Blue lamp", Price: 25.5, Stock: 0, CreatedAt: base, Version: 1},
		{ID: "c", Name: "Desk (large)", Price: 99, Stock: 3, Active: true, CreatedAt: base.Add(time.Hour), Version: 1},
	}
	for i := range docs {
		require.NoError(t, c.Insert(ctx, &docs[i]))
	}
	return c
}

func ids(items []item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestFind_Filters(t *testing.T) {
	c := seed(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter docstore.Filter
		want   []string
	}{
		{"all", nil, []string{"a", "b", "c"}},
		{"contains is case-insensitive", docstore.Filter{docstore.Contains("name", "LAMP")}, []string{"a", "b"}},
		{"contains is literal", docstore.Filter{docstore.Contains("name", "(large)")}, []string{"c"}},
		{"regex metacharacters do not match", docstore.Filter{docstore.Contains("name", ".*")}, nil},
		{"gte", docstore.Filter{docstore.Gte("price", 25.5)}, []string{"b", "c"}},
		{"gt and lt", docstore.Filter{docstore.Gt("price", 10.0), docstore.Lt("price", 99.0)}, []string{"b"}},
		{"lte int64", docstore.Filter{docstore.Lte("stock", int64(3))}, []string{"b", "c"}},
		{"eq string", docstore.Filter{docstore.Eq("name", "Red Lamp")}, []string{"a"}},
		{"eq bool", docstore.Filter{docstore.Eq("active", true)}, []string{"a", "c"}},
		{"time", docstore.Filter{docstore.Gte("created_at", base.Add(time.Hour))}, []string{"a", "c"}},
		{"type mismatch matches nothing", docstore.Filter{docstore.Eq("price", "10")}, nil},
		{"none", docstore.Filter{docstore.Contains("name", "lamp"), docstore.None()}, nil},
		{"missing field", docstore.Filter{docstore.Eq("color", "red")}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Find(ctx, tt.filter, docstore.FindOptions{})
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.ElementsMatch(t, tt.want, ids(got))
		})
	}
}

func TestFind_SortSkipLimit(t *testing.T) {
	c := seed(t)
	ctx := context.Background()
	byCreated := []docstore.Sort{{Field: "created_at"}, {Field: "id"}}

	got, err := c.Find(ctx, nil, docstore.FindOptions{Sort: byCreated})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, ids(got))

	got, err = c.Find(ctx, nil, docstore.FindOptions{Sort: byCreated, Skip: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(got))

	got, err = c.Find(ctx, nil, docstore.FindOptions{Sort: []docstore.Sort{{Field: "price", Desc: true}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids(got))

	got, err = c.Find(ctx, nil, docstore.FindOptions{Skip: 10, Limit: 4})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFind_InvalidField(t *testing.T) {
	c := seed(t)
	_, err := c.Find(context.Background(), docstore.Filter{docstore.Eq("name'; drop", "x")}, docstore.FindOptions{})
	assert.Error(t, err)
}

func TestFindOne(t *testing.T) {
	c := seed(t)
	got, err := c.FindOne(context.Background(), docstore.Filter{docstore.Eq("name", "Blue lamp")})
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)

	_, err = c.FindOne(context.Background(), docstore.Filter{docstore.Eq("name", "nope")})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestInsert_Duplicates(t *testing.T) {
	c := New[item]("items", "email")
	ctx := context.Background()
	require.NoError(t, c.Insert(ctx, &item{ID: "1", Name: "x", Email: "a@x.io"}))
	assert.ErrorIs(t, c.Insert(ctx, &item{ID: "1", Name: "y"}), docstore.ErrDuplicate)
	assert.ErrorIs(t, c.Insert(ctx, &item{ID: "2", Name: "y", Email: "a@x.io"}), docstore.ErrDuplicate)
	assert.NoError(t, c.Insert(ctx, &item{ID: "3", Name: "z"}), "empty unique values do not collide")
	assert.NoError(t, c.Insert(ctx, &item{ID: "4", Name: "w"}))
	assert.Error(t, c.Insert(ctx, &item{Name: "no id"}))
}

func TestFindByID_ReturnsCopies(t *testing.T) {
	c := seed(t)
	got, err := c.FindByID(context.Background(), "a")
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := c.FindByID(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "Red Lamp", again.Name)

	_, err = c.FindByID(context.Background(), "zzz")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestUpdateByID(t *testing.T) {
	c := seed(t)
	ctx := context.Background()

	got, err := c.UpdateByID(ctx, "a", docstore.Patch{"name": "Green Lamp", "version": 99, "id": "hijack"}, docstore.UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Green Lamp", got.Name)
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, 10.0, got.Price, "untouched fields survive")

	_, err = c.UpdateByID(ctx, "a", docstore.Patch{"name": "x"}, docstore.UpdateOptions{IfVersion: 1})
	assert.ErrorIs(t, err, docstore.ErrConflict)

	got, err = c.UpdateByID(ctx, "a", docstore.Patch{"name": "y"}, docstore.UpdateOptions{IfVersion: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Version)

	_, err = c.UpdateByID(ctx, "missing", docstore.Patch{"name": "x"}, docstore.UpdateOptions{})
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	_, err = c.UpdateByID(ctx, "a", docstore.Patch{"version": 5}, docstore.UpdateOptions{})
	assert.Error(t, err, "an empty patch is rejected")
}

func TestUpdateByID_Validation(t *testing.T) {
	c := seed(t)
	ctx := context.Background()

	_, err := c.UpdateByID(ctx, "a", docstore.Patch{"price": -1}, docstore.UpdateOptions{Validate: true})
	var ve *validator.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields(), "price")

	got, err := c.UpdateByID(ctx, "a", docstore.Patch{"price": -1}, docstore.UpdateOptions{Validate: false})
	require.NoError(t, err, "partial updates skip validation")
	assert.Equal(t, -1.0, got.Price)

	_, err = c.UpdateByID(ctx, "a", docstore.Patch{"stock": 1}, docstore.UpdateOptions{Validate: true})
	assert.NoError(t, err, "only patched fields are validated")
}

func TestUpdateByID_Unique(t *testing.T) {
	c := New[item]("items", "email")
	ctx := context.Background()
	require.NoError(t, c.Insert(ctx, &item{ID: "1", Name: "x", Email: "a@x.io"}))
	require.NoError(t, c.Insert(ctx, &item{ID: "2", Name: "y", Email: "b@x.io"}))

	_, err := c.UpdateByID(ctx, "2", docstore.Patch{"email": "a@x.io"}, docstore.UpdateOptions{})
	assert.ErrorIs(t, err, docstore.ErrDuplicate)

	_, err = c.UpdateByID(ctx, "1", docstore.Patch{"email": "a@x.io"}, docstore.UpdateOptions{})
	assert.NoError(t, err, "a document does not collide with itself")
}

func TestIncrementByID(t *testing.T) {
	c := seed(t)
	ctx := context.Background()

	got, err := c.IncrementByID(ctx, "a", "stock", -3, docstore.IncrementOptions{Floor: docstore.Floor(0)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Stock)
	assert.Equal(t, int64(2), got.Version)

	_, err = c.IncrementByID(ctx, "a", "stock", -3, docstore.IncrementOptions{Floor: docstore.Floor(0)})
	assert.ErrorIs(t, err, docstore.ErrBelowFloor)

	got, err = c.IncrementByID(ctx, "a", "stock", -3, docstore.IncrementOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(-1), got.Stock)

	_, err = c.IncrementByID(ctx, "zzz", "stock", 1, docstore.IncrementOptions{})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestIncrementByID_Concurrent(t *testing.T) {
	c := New[item]("items")
	ctx := context.Background()
	require.NoError(t, c.Insert(ctx, &item{ID: "p", Name: "x", Stock: 50, Version: 1}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	rejected := 0
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.IncrementByID(ctx, "p", "stock", -1, docstore.IncrementOptions{Floor: docstore.Floor(0)}); err != nil {
				mu.Lock()
				rejected++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := c.FindByID(ctx, "p")
	require.NoError(t, err)
	assert.Zero(t, got.Stock)
	assert.Equal(t, 10, rejected)
}

func TestDeleteAndCount(t *testing.T) {
	c := seed(t)
	ctx := context.Background()

	n, err := c.Count(ctx, docstore.Filter{docstore.Contains("name", "lamp")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, c.DeleteByID(ctx, "a"))
	assert.ErrorIs(t, c.DeleteByID(ctx, "a"), docstore.ErrNotFound)

	deleted, err := c.DeleteMany(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	n, err = c.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, c.Ping(ctx))
}
