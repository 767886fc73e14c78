package repository

import (
	"encoding/json"
	"fmt"
)

// Fields the caller can never set through create or update.
var immutableFields = map[string]bool{
	"_id":       true,
	"createdAt": true,
	"updatedAt": true,
}

// patchNormalizer lets a model rename legacy input fields before merging.
type patchNormalizer interface {
	NormalizePatch(patch map[string]json.RawMessage)
}

// apply merges patch over doc field by field. Keys the model does not know
// are dropped; fields absent from patch keep their value. The merge is
// shallow: a nested object in patch replaces the stored one.
func apply[T any](doc *T, patch map[string]json.RawMessage) error {
	if len(patch) == 0 {
		return nil
	}
	if n, ok := any(doc).(patchNormalizer); ok {
		n.NormalizePatch(patch)
	}

	current, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(current, &fields); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	for k, v := range patch {
		if immutableFields[k] {
			continue
		}
		fields[k] = v
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode merged record: %w", err)
	}
	next := new(T)
	if err := json.Unmarshal(merged, next); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	*doc = *next
	return nil
}
