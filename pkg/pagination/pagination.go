package pagination

import (
	"math"
	"net/http"
	"strconv"
	"strings"
)

// MaxPerPage caps client-supplied page sizes.
const MaxPerPage = 100

// Params holds 1-indexed page parameters.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// New returns normalized params: page < 1 becomes 1, perPage < 1 becomes 1
// and perPage above MaxPerPage is capped. Page is capped so that Offset
// cannot overflow.
func New(page, perPage int) Params {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	if maxPage := math.MaxInt / perPage; page > maxPage {
		page = maxPage
	}
	return Params{Page: page, PerPage: perPage}
}

// ParsePage reads a page number, returning 1 for empty, malformed or
// non-positive input.
func ParsePage(raw string) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < 1 {
		return 1
	}
	return v
}

// FromRequest reads `page` and `per_page` from the query string.
func FromRequest(r *http.Request, defaultPerPage int) Params {
	q := r.URL.Query()
	perPage := defaultPerPage
	if v, err := strconv.Atoi(q.Get("per_page")); err == nil && v > 0 {
		perPage = v
	}
	return New(ParsePage(q.Get("page")), perPage)
}

// Offset is the number of records to skip.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Result wraps one page of records.
type Result[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewResult creates a paginated result. A nil data slice is encoded as [].
func NewResult[T any](data []T, totalCount int, params Params) Result[T] {
	totalPages := 0
	if params.PerPage > 0 {
		totalPages = (totalCount + params.PerPage - 1) / params.PerPage
	}
	if data == nil {
		data = []T{}
	}
	return Result[T]{
		Data:       data,
		TotalCount: totalCount,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalPages: totalPages,
		HasNext:    params.Page < totalPages,
		HasPrev:    params.Page > 1,
	}
}
