// Package catalog turns untrusted listing parameters into a store filter and
// runs the paginated product listing.
package catalog

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/utafrali/storefront/internal/docstore"
)

// Reserved parameters that never become filter clauses.
const (
	ParamKeyword = "keyword"
	ParamPage    = "page"
	ParamLimit   = "limit"
)

// Kind is the value type of a filterable field.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindInteger
	KindTime
	KindBool
)

// Comparable reports whether range operators apply to k.
func (k Kind) Comparable() bool {
	return k == KindNumber || k == KindInteger || k == KindTime
}

// Schema lists the fields a client may filter on.
type Schema map[string]Kind

// ProductSchema is the filterable surface of a product.
var ProductSchema = Schema{
	"id":             KindString,
	"name":           KindString,
	"slug":           KindString,
	"category":       KindString,
	"user_id":        KindString,
	"price":          KindNumber,
	"ratings":        KindNumber,
	"stock":          KindInteger,
	"num_of_reviews": KindInteger,
	"created_at":     KindTime,
}

// SearchField is matched against the keyword.
const SearchField = "name"

var bracketKey = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\[([A-Za-z]+)\]$`)

// BuildFilter derives the search and filter restriction from params. The
// result depends only on params, so calling it twice yields equal filters.
// Anything it cannot interpret turns into a clause that matches nothing.
func BuildFilter(params map[string]string, schema Schema) docstore.Filter {
	filter := docstore.Filter{}
	if kw := params[ParamKeyword]; kw != "" {
		filter = append(filter, docstore.Contains(SearchField, kw))
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		switch k {
		case ParamKeyword, ParamPage, ParamLimit:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		filter = append(filter, clause(key, params[key], schema))
	}
	return filter
}

func clause(key, raw string, schema Schema) docstore.Cond {
	field, op := key, docstore.OpEq
	if m := bracketKey.FindStringSubmatch(key); m != nil {
		field, op = m[1], docstore.Op(strings.ToLower(m[2]))
		if !op.IsComparison() {
			return docstore.None()
		}
	}

	kind, ok := schema[field]
	if !ok {
		return docstore.None()
	}
	if op.IsComparison() && !kind.Comparable() {
		return docstore.None()
	}
	value, ok := parseValue(kind, raw)
	if !ok {
		return docstore.None()
	}
	return docstore.Cond{Field: field, Op: op, Value: value}
}

func parseValue(kind Kind, raw string) (any, bool) {
	raw = strings.TrimSpace(raw)
	switch kind {
	case KindString:
		return raw, true
	case KindNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, false
		}
		return f, true
	case KindInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, false
		}
		return n, true
	case KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, false
		}
		return b, true
	case KindTime:
		for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC(), true
			}
		}
	}
	return nil, false
}
