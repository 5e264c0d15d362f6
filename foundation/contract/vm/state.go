package vm

import (
	"encoding/json"
	"fmt"
	"math"
)

// State is the JSON-like data a contract operates on.
type State map[string]any

// Copy returns a deep copy of the state made with a JSON round trip. A state
// that can't be represented as JSON degrades to an empty state.
func (s State) Copy() State {
	data, err := json.Marshal(s)
	if err != nil {
		return State{}
	}

	var cpy State
	if err := json.Unmarshal(data, &cpy); err != nil || cpy == nil {
		return State{}
	}

	return cpy
}

// Number returns the value for the key as a float64. A missing key is zero.
func (s State) Number(key string) (float64, error) {
	v, exists := s[key]
	if !exists || v == nil {
		return 0, nil
	}

	return toNumber(key, v)
}

// Uint returns the value for the key as a uint64. A missing key is zero.
func (s State) Uint(key string) (uint64, error) {
	f, err := s.Number(key)
	if err != nil {
		return 0, err
	}

	if f < 0 || f != math.Trunc(f) {
		return 0, fmt.Errorf("%s: %v is not a whole positive number", key, f)
	}

	return uint64(f), nil
}

// String returns the value for the key as a string. A missing key is empty.
func (s State) String(key string) (string, error) {
	v, exists := s[key]
	if !exists || v == nil {
		return "", nil
	}

	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: expected a string, got %T", key, v)
	}

	return str, nil
}

// Map returns the value for the key as a nested state. A missing key is an
// empty state.
func (s State) Map(key string) (State, error) {
	v, exists := s[key]
	if !exists || v == nil {
		return State{}, nil
	}

	switch m := v.(type) {
	case State:
		return m, nil
	case map[string]any:
		return State(m), nil
	}

	return nil, fmt.Errorf("%s: expected an object, got %T", key, v)
}

// =============================================================================

func toNumber(key string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	}

	return 0, fmt.Errorf("%s: expected a number, got %T", key, v)
}
