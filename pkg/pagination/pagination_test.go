package pagination

import (
	"math"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePage(t *testing.T) {
	tests := map[string]int{
		"":    1,
		"1":   1,
		"3":   3,
		" 2 ": 2,
		"0":   1,
		"-4":  1,
		"abc": 1,
		"2.5": 1,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParsePage(in), "input %q", in)
	}
}

func TestNew_Normalizes(t *testing.T) {
	assert.Equal(t, Params{Page: 1, PerPage: 1}, New(0, 0))
	assert.Equal(t, Params{Page: 2, PerPage: MaxPerPage}, New(2, 500))
	assert.Equal(t, Params{Page: 5, PerPage: 4}, New(5, 4))
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 0, New(1, 4).Offset())
	assert.Equal(t, 8, New(3, 4).Offset())
}

func TestOffset_HugePageDoesNotWrap(t *testing.T) {
	for _, raw := range []string{"4611686018427387905", "9223372036854775807"} {
		for _, perPage := range []int{1, 4, MaxPerPage} {
			p := New(ParsePage(raw), perPage)
			assert.Greater(t, p.Offset(), 0, "page %s per_page %d", raw, perPage)
			assert.Equal(t, p.Page-1, p.Offset()/perPage)
			assert.LessOrEqual(t, p.Page, math.MaxInt/perPage)
		}
	}
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/admin/users?page=2&per_page=10", nil)
	assert.Equal(t, Params{Page: 2, PerPage: 10}, FromRequest(r, 20))

	r = httptest.NewRequest("GET", "/admin/users?per_page=bad", nil)
	assert.Equal(t, Params{Page: 1, PerPage: 20}, FromRequest(r, 20))
}

func TestNewResult(t *testing.T) {
	res := NewResult([]string{"a", "b"}, 9, New(2, 4))
	assert.Equal(t, 3, res.TotalPages)
	assert.True(t, res.HasNext)
	assert.True(t, res.HasPrev)

	last := NewResult[string](nil, 9, New(3, 4))
	assert.NotNil(t, last.Data)
	assert.False(t, last.HasNext)

	empty := NewResult[string](nil, 0, New(1, 4))
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasNext)
}
