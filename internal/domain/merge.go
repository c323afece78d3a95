package domain

import (
	"fmt"

	"dario.cat/mergo"
)

// MergeInput folds caller-supplied resume input into a pending node payload.
// Input wins over staged values, slices append. The staged payload is not
// mutated; a new map is returned.
func MergeInput(payload, input map[string]any) (map[string]any, error) {
	merged := make(map[string]any, len(payload)+len(input))
	for k, v := range payload {
		merged[k] = v
	}
	if len(input) == 0 {
		return merged, nil
	}
	if err := mergo.Merge(&merged, input, mergo.WithOverride, mergo.WithAppendSlice); err != nil {
		return nil, fmt.Errorf("merge resume input: %w", err)
	}
	return merged, nil
}

// MergeState folds node writes into the run state in place. Nested maps are
// merged rather than replaced, so nodes can write partial updates without
// clobbering sibling keys.
func MergeState(state, writes map[string]any) error {
	if len(writes) == 0 {
		return nil
	}
	if err := mergo.Merge(&state, writes, mergo.WithOverride, mergo.WithAppendSlice); err != nil {
		return fmt.Errorf("merge state writes: %w", err)
	}
	return nil
}
