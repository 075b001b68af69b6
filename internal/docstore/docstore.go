// Package docstore defines a typed document collection with conditional
// updates and atomic increments, plus the filter language used to query it.
// Backends live in the memory, mongo and postgres subpackages.
//
// Documents are structs whose json and bson field names agree. The id is the
// json field "id" (bson "_id") and every document carries an int64 "version"
// that each update bumps by one.
package docstore

import (
	"context"
	"fmt"
	"regexp"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Reserved document fields.
const (
	FieldID      = "id"
	FieldVersion = "version"
)

// Errors returned by every backend. They wrap the pkg/errors sentinels so the
// HTTP layer classifies them without knowing about docstore.
var (
	ErrNotFound   = fmt.Errorf("docstore: %w", apperrors.ErrNotFound)
	ErrConflict   = fmt.Errorf("docstore: version mismatch: %w", apperrors.ErrConflict)
	ErrDuplicate  = fmt.Errorf("docstore: duplicate key: %w", apperrors.ErrAlreadyExists)
	ErrBelowFloor = fmt.Errorf("docstore: increment would cross floor: %w", apperrors.ErrInvalidInput)
)

// Patch is a set of top-level field assignments keyed by document field name.
type Patch map[string]any

// Sort orders results by one field.
type Sort struct {
	Field string
	Desc  bool
}

// FindOptions control pagination and ordering. Zero Limit means no limit.
type FindOptions struct {
	Skip  int64
	Limit int64
	Sort  []Sort
}

// UpdateOptions control UpdateByID.
type UpdateOptions struct {
	// Validate checks the patched fields against the document's validate tags.
	Validate bool
	// IfVersion, when non-zero, applies the patch only if the stored version
	// equals it; otherwise ErrConflict is returned.
	IfVersion int64
}

// IncrementOptions control IncrementByID.
type IncrementOptions struct {
	// Floor, when set, rejects the increment with ErrBelowFloor if the result
	// would be lower than *Floor.
	Floor *int64
}

// Floor returns a pointer to v for IncrementOptions.Floor.
func Floor(v int64) *int64 { return &v }

// Collection is a typed document collection.
type Collection[T any] interface {
	Find(ctx context.Context, filter Filter, opts FindOptions) ([]T, error)
	FindOne(ctx context.Context, filter Filter) (*T, error)
	FindByID(ctx context.Context, id string) (*T, error)
	Insert(ctx context.Context, doc *T) error
	UpdateByID(ctx context.Context, id string, patch Patch, opts UpdateOptions) (*T, error)
	IncrementByID(ctx context.Context, id, field string, delta int64, opts IncrementOptions) (*T, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, filter Filter) (int64, error)
	Count(ctx context.Context, filter Filter) (int64, error)
}

var fieldName = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// ValidField reports whether name can be used as a document field. Backends
// that splice field names into query text rely on this check.
func ValidField(name string) bool {
	return fieldName.MatchString(name)
}

// CheckField returns an InvalidInput error for names ValidField rejects.
func CheckField(name string) error {
	if !ValidField(name) {
		return apperrors.InvalidInput(fmt.Sprintf("invalid field name %q", name))
	}
	return nil
}
