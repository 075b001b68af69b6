package docstore

import (
	"encoding/json"
	"fmt"
	"sort"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/validator"
)

// Prepare checks the patch keys and drops the reserved id and version
// fields, which only the store may write. It returns the cleaned patch and
// its keys in sorted order.
func Prepare(patch Patch) (Patch, []string, error) {
	out := make(Patch, len(patch))
	keys := make([]string, 0, len(patch))
	for k, v := range patch {
		if k == FieldID || k == FieldVersion {
			continue
		}
		if err := CheckField(k); err != nil {
			return nil, nil, err
		}
		out[k] = v
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil, nil, apperrors.InvalidInput("nothing to update")
	}
	sort.Strings(keys)
	return out, keys, nil
}

// ValidatePatch decodes patch into a zero T and runs the validate tags of
// the patched fields only. Fields absent from the patch are not checked.
func ValidatePatch[T any](patch Patch, keys []string) error {
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}
	var doc T
	if err := json.Unmarshal(raw, &doc); err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("patch does not fit document: %v", err))
	}
	return validator.ValidatePartial(&doc, keys...)
}
