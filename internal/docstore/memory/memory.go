// Package memory is an in-process docstore backend. Documents are held as
// JSON-shaped maps in insertion order; it backs tests and STORE_DRIVER=memory.
package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/utafrali/storefront/internal/docstore"
	"github.com/utafrali/storefront/pkg/database"
)

type document = map[string]any

// Collection is a docstore.Collection kept in memory. It is safe for
// concurrent use; every operation is atomic with respect to the others.
type Collection[T any] struct {
	mu     sync.RWMutex
	name   string
	docs   []document
	unique []string
}

var _ docstore.Collection[struct{}] = (*Collection[struct{}])(nil)

// New creates an empty collection. unique lists fields whose values must be
// distinct across documents.
func New[T any](name string, unique ...string) *Collection[T] {
	return &Collection[T]{name: name, unique: unique}
}

func (c *Collection[T]) trace(ctx context.Context, op string) (context.Context, func(error)) {
	return database.TraceOp(ctx, database.SystemMemory, c.name+"."+op, "")
}

func (c *Collection[T]) Find(ctx context.Context, filter docstore.Filter, opts docstore.FindOptions) (out []T, err error) {
	_, end := c.trace(ctx, "find")
	defer func() { end(err) }()
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	matched := make([]document, 0)
	for _, d := range c.docs {
		if matches(d, filter) {
			matched = append(matched, d)
		}
	}
	c.mu.RUnlock()

	if len(opts.Sort) > 0 {
		slices.SortStableFunc(matched, func(a, b document) int {
			for _, s := range opts.Sort {
				r := compareValues(a[s.Field], b[s.Field])
				if s.Desc {
					r = -r
				}
				if r != 0 {
					return r
				}
			}
			return 0
		})
	}

	start := max(0, min(opts.Skip, int64(len(matched))))
	stop := int64(len(matched))
	if opts.Limit > 0 {
		stop = min(start+opts.Limit, stop)
	}

	out = make([]T, 0, stop-start)
	for _, d := range matched[start:stop] {
		v, err := decode[T](d)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

func (c *Collection[T]) FindOne(ctx context.Context, filter docstore.Filter) (*T, error) {
	docs, err := c.Find(ctx, filter, docstore.FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, docstore.ErrNotFound
	}
	return &docs[0], nil
}

func (c *Collection[T]) FindByID(ctx context.Context, id string) (doc *T, err error) {
	_, end := c.trace(ctx, "find_by_id")
	defer func() { end(err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()
	i := c.indexOf(id)
	if i < 0 {
		return nil, docstore.ErrNotFound
	}
	return decode[T](c.docs[i])
}

func (c *Collection[T]) Insert(ctx context.Context, doc *T) (err error) {
	_, end := c.trace(ctx, "insert")
	defer func() { end(err) }()

	d, err := encode(doc)
	if err != nil {
		return err
	}
	id, _ := d[docstore.FieldID].(string)
	if id == "" {
		return fmt.Errorf("memory %s: document has no id", c.name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexOf(id) >= 0 {
		return docstore.ErrDuplicate
	}
	if err := c.checkUnique(d, ""); err != nil {
		return err
	}
	c.docs = append(c.docs, d)
	return nil
}

func (c *Collection[T]) UpdateByID(ctx context.Context, id string, patch docstore.Patch, opts docstore.UpdateOptions) (doc *T, err error) {
	_, end := c.trace(ctx, "update")
	defer func() { end(err) }()

	patch, keys, err := docstore.Prepare(patch)
	if err != nil {
		return nil, err
	}
	if opts.Validate {
		if err := docstore.ValidatePatch[T](patch, keys); err != nil {
			return nil, err
		}
	}
	fields, err := encode(&patch)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(id)
	if i < 0 {
		return nil, docstore.ErrNotFound
	}
	current := c.docs[i]
	if opts.IfVersion != 0 && versionOf(current) != opts.IfVersion {
		return nil, docstore.ErrConflict
	}

	next := make(document, len(current)+len(fields))
	for k, v := range current {
		next[k] = v
	}
	for k, v := range fields {
		next[k] = v
	}
	next[docstore.FieldVersion] = float64(versionOf(current) + 1)
	if err := c.checkUnique(next, id); err != nil {
		return nil, err
	}
	c.docs[i] = next
	return decode[T](next)
}

func (c *Collection[T]) IncrementByID(ctx context.Context, id, field string, delta int64, opts docstore.IncrementOptions) (doc *T, err error) {
	_, end := c.trace(ctx, "increment")
	defer func() { end(err) }()
	if err := docstore.CheckField(field); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(id)
	if i < 0 {
		return nil, docstore.ErrNotFound
	}
	current := c.docs[i]
	n, _ := current[field].(float64)
	result := int64(n) + delta
	if opts.Floor != nil && result < *opts.Floor {
		return nil, docstore.ErrBelowFloor
	}

	next := make(document, len(current))
	for k, v := range current {
		next[k] = v
	}
	next[field] = float64(result)
	next[docstore.FieldVersion] = float64(versionOf(current) + 1)
	c.docs[i] = next
	return decode[T](next)
}

func (c *Collection[T]) DeleteByID(ctx context.Context, id string) (err error) {
	_, end := c.trace(ctx, "delete")
	defer func() { end(err) }()

	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(id)
	if i < 0 {
		return docstore.ErrNotFound
	}
	c.docs = slices.Delete(c.docs, i, i+1)
	return nil
}

func (c *Collection[T]) DeleteMany(ctx context.Context, filter docstore.Filter) (n int64, err error) {
	_, end := c.trace(ctx, "delete_many")
	defer func() { end(err) }()
	if err := filter.Validate(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	before := len(c.docs)
	c.docs = slices.DeleteFunc(c.docs, func(d document) bool { return matches(d, filter) })
	return int64(before - len(c.docs)), nil
}

func (c *Collection[T]) Count(ctx context.Context, filter docstore.Filter) (n int64, err error) {
	_, end := c.trace(ctx, "count")
	defer func() { end(err) }()
	if err := filter.Validate(); err != nil {
		return 0, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, d := range c.docs {
		if matches(d, filter) {
			n++
		}
	}
	return n, nil
}

// Ping always succeeds; it lets the memory backend join readiness checks.
func (c *Collection[T]) Ping(context.Context) error { return nil }

func (c *Collection[T]) indexOf(id string) int {
	return slices.IndexFunc(c.docs, func(d document) bool { return d[docstore.FieldID] == id })
}

// checkUnique must be called with c.mu held. skipID excludes the document
// being replaced.
func (c *Collection[T]) checkUnique(d document, skipID string) error {
	for _, field := range c.unique {
		v, ok := d[field]
		if !ok || v == nil || v == "" {
			continue
		}
		for _, other := range c.docs {
			if other[docstore.FieldID] == skipID {
				continue
			}
			if other[field] == v {
				return docstore.ErrDuplicate
			}
		}
	}
	return nil
}

func versionOf(d document) int64 {
	v, _ := d[docstore.FieldVersion].(float64)
	return int64(v)
}

func encode(v any) (document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var d document
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return d, nil
}

func decode[T any](d document) (*T, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &v, nil
}

func matches(d document, f docstore.Filter) bool {
	for _, c := range f {
		if !matchCond(d, c) {
			return false
		}
	}
	return true
}

func matchCond(d document, c docstore.Cond) bool {
	if c.Op == docstore.OpNone {
		return false
	}
	got, ok := d[c.Field]
	if c.Op == docstore.OpContains {
		s, isStr := got.(string)
		want, _ := c.Value.(string)
		return isStr && strings.Contains(strings.ToLower(s), strings.ToLower(want))
	}
	if c.Value == nil {
		return c.Op == docstore.OpEq && (!ok || got == nil)
	}
	r, typed := compareTo(got, c.Value)
	if !ok || !typed {
		return false
	}
	switch c.Op {
	case docstore.OpEq:
		return r == 0
	case docstore.OpGt:
		return r > 0
	case docstore.OpGte:
		return r >= 0
	case docstore.OpLt:
		return r < 0
	case docstore.OpLte:
		return r <= 0
	}
	return false
}

// compareTo compares a stored JSON value with a filter value of the Go type
// the filter carries.
func compareTo(got, want any) (int, bool) {
	switch w := want.(type) {
	case string:
		s, ok := got.(string)
		return strings.Compare(s, w), ok
	case bool:
		b, ok := got.(bool)
		return compareBool(b, w), ok
	case float64:
		f, ok := got.(float64)
		return cmp.Compare(f, w), ok
	case int64:
		f, ok := got.(float64)
		return cmp.Compare(f, float64(w)), ok
	case int:
		f, ok := got.(float64)
		return cmp.Compare(f, float64(w)), ok
	case time.Time:
		s, ok := got.(string)
		if !ok {
			return 0, false
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return 0, false
		}
		return t.Compare(w), true
	}
	return 0, false
}

// compareValues orders two stored values for sorting. Missing values sort
// first; RFC 3339 strings compare as instants.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			return cmp.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			return compareBool(x, y)
		}
	case string:
		if y, ok := b.(string); ok {
			tx, errx := time.Parse(time.RFC3339Nano, x)
			ty, erry := time.Parse(time.RFC3339Nano, y)
			if errx == nil && erry == nil {
				return tx.Compare(ty)
			}
			return strings.Compare(x, y)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}
