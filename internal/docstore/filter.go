package docstore

import (
	"fmt"
	"strings"
	"time"
)

// Op is a comparison operator.
type Op string

const (
	OpEq       Op = "eq"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpContains Op = "contains"
	// OpNone matches no document. It stands in for clauses built from
	// untrusted input that could not be interpreted.
	OpNone Op = "none"
)

// IsComparison reports whether op is one of gt, gte, lt, lte.
func (op Op) IsComparison() bool {
	switch op {
	case OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// Cond is one clause of a Filter. Value is a string, bool, float64, int64
// or time.Time; OpContains takes a string and matches case-insensitively with
// the value taken literally.
type Cond struct {
	Field string
	Op    Op
	Value any
}

func (c Cond) String() string {
	if c.Op == OpNone {
		return "none"
	}
	return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
}

// Filter is a conjunction of clauses. The empty filter matches everything.
type Filter []Cond

// And returns a new filter with conds appended.
func (f Filter) And(conds ...Cond) Filter {
	out := make(Filter, 0, len(f)+len(conds))
	out = append(out, f...)
	return append(out, conds...)
}

// MatchesNothing reports whether f contains an OpNone clause.
func (f Filter) MatchesNothing() bool {
	for _, c := range f {
		if c.Op == OpNone {
			return true
		}
	}
	return false
}

func (f Filter) String() string {
	if len(f) == 0 {
		return "all"
	}
	parts := make([]string, len(f))
	for i, c := range f {
		parts[i] = c.String()
	}
	return strings.Join(parts, " AND ")
}

// Validate checks that every clause names a usable field and carries a value
// of a supported type.
func (f Filter) Validate() error {
	for _, c := range f {
		if c.Op == OpNone {
			continue
		}
		if err := CheckField(c.Field); err != nil {
			return err
		}
		switch c.Value.(type) {
		case string, bool, float64, int64, int, time.Time, nil:
		default:
			return fmt.Errorf("docstore: unsupported value %T for field %s", c.Value, c.Field)
		}
		if c.Op == OpContains {
			if _, ok := c.Value.(string); !ok {
				return fmt.Errorf("docstore: contains on %s needs a string", c.Field)
			}
		}
	}
	return nil
}

// Eq matches documents whose field equals v.
func Eq(field string, v any) Cond { return Cond{Field: field, Op: OpEq, Value: v} }

// Gt matches documents whose field is greater than v.
func Gt(field string, v any) Cond { return Cond{Field: field, Op: OpGt, Value: v} }

// Gte matches documents whose field is at least v.
func Gte(field string, v any) Cond { return Cond{Field: field, Op: OpGte, Value: v} }

// Lt matches documents whose field is less than v.
func Lt(field string, v any) Cond { return Cond{Field: field, Op: OpLt, Value: v} }

// Lte matches documents whose field is at most v.
func Lte(field string, v any) Cond { return Cond{Field: field, Op: OpLte, Value: v} }

// Contains matches a case-insensitive literal substring of a string field.
func Contains(field, s string) Cond { return Cond{Field: field, Op: OpContains, Value: s} }

// None matches nothing.
func None() Cond { return Cond{Op: OpNone} }
