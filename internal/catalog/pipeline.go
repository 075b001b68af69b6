package catalog

import (
	"context"
	"fmt"

	"github.com/utafrali/storefront/internal/docstore"
	"github.com/utafrali/storefront/pkg/pagination"
)

// DefaultPageSize is the listing page size when none is configured.
const DefaultPageSize = 4

// DefaultSort orders listings oldest first with the id as tie breaker.
var DefaultSort = []docstore.Sort{{Field: "created_at"}, {Field: docstore.FieldID}}

// Result is one page of a listing. Count is the number of matches across all
// pages; Total is the size of the unfiltered collection.
type Result[T any] struct {
	Items    []T   `json:"items"`
	Count    int64 `json:"filtered_count"`
	Total    int64 `json:"total_count"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

// Pipeline runs search, filter, count and pagination over a collection.
type Pipeline[T any] struct {
	coll     docstore.Collection[T]
	schema   Schema
	pageSize int
}

// NewPipeline creates a pipeline. A non-positive pageSize falls back to
// DefaultPageSize.
func NewPipeline[T any](coll docstore.Collection[T], schema Schema, pageSize int) *Pipeline[T] {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &Pipeline[T]{coll: coll, schema: schema, pageSize: pageSize}
}

// PageSize returns the configured page size.
func (p *Pipeline[T]) PageSize() int {
	return p.pageSize
}

// Run lists the page of matches selected by params.
func (p *Pipeline[T]) Run(ctx context.Context, params map[string]string) (*Result[T], error) {
	filter := BuildFilter(params, p.schema)
	page := pagination.New(pagination.ParsePage(params[ParamPage]), p.pageSize)

	total, err := p.coll.Count(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("count all: %w", err)
	}
	count, err := p.coll.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count matches: %w", err)
	}
	items, err := p.coll.Find(ctx, filter, docstore.FindOptions{
		Skip:  int64(page.Offset()),
		Limit: int64(page.PerPage),
		Sort:  DefaultSort,
	})
	if err != nil {
		return nil, fmt.Errorf("find page: %w", err)
	}

	return &Result[T]{
		Items:    items,
		Count:    count,
		Total:    total,
		Page:     page.Page,
		PageSize: page.PerPage,
	}, nil
}
