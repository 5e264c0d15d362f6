// Package template provides the catalog of contracts that can be deployed
// into the sandbox and turns a function call into the VM steps it runs.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/ardanlabs/ledgersim/foundation/contract/vm"
)

// Set of error variables for template lookups and calls.
var (
	ErrNotFound        = errors.New("template not found")
	ErrUnknownFunction = errors.New("unknown function")
	ErrInvalidArgs     = errors.New("invalid arguments")
)

// Function describes a callable function of a template.
type Function struct {
	Name string   `json:"name"`
	Args []string `json:"args"`
	Cost uint64   `json:"cost"`
}

// StepsFunc turns the arguments of a call into the steps the VM runs.
type StepsFunc func(args []string) ([]vm.Step, error)

// Template is a deployable contract.
type Template struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Functions   []Function `json:"functions"`
	initial     any
	steps       map[string]StepsFunc
}

// InitialState returns a fresh copy of the state a new instance starts with.
func (t Template) InitialState() vm.State {
	return encode(t.initial)
}

// Function returns the definition of the named function.
func (t Template) Function(name string) (Function, bool) {
	for _, fn := range t.Functions {
		if fn.Name == name {
			return fn, true
		}
	}

	return Function{}, false
}

// Steps returns the steps a call of the named function runs.
func (t Template) Steps(function string, args []string) ([]vm.Step, error) {
	fn, exists := t.Function(function)
	if !exists {
		return nil, fmt.Errorf("%s.%s: %w", t.Name, function, ErrUnknownFunction)
	}

	if len(args) != len(fn.Args) {
		return nil, fmt.Errorf("%s.%s: expected %d arguments, got %d: %w", t.Name, function, len(fn.Args), len(args), ErrInvalidArgs)
	}

	return t.steps[function](args)
}

// =============================================================================

// Lookup returns the template with the specified id.
func Lookup(id string) (Template, error) {
	t, exists := catalog[id]
	if !exists {
		return Template{}, fmt.Errorf("%q: %w", id, ErrNotFound)
	}

	return t, nil
}

// List returns every template ordered by id.
func List() []Template {
	list := make([]Template, 0, len(catalog))
	for _, t := range catalog {
		list = append(list, t)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})

	return list
}

// Decode converts a state into the typed shape of the specified template. A
// state that belongs to an unknown template or doesn't fit its shape is
// returned as is.
func Decode(id string, s vm.State) any {
	var v any
	var err error

	switch id {
	case SimpleStorageID:
		v, err = decode[StorageState](s)
	case CounterID:
		v, err = decode[CounterState](s)
	case TokenID:
		v, err = decode[TokenState](s)
	case GuardedTransferID:
		v, err = decode[GuardedState](s)
	default:
		return s
	}

	if err != nil {
		return s
	}

	return v
}

// =============================================================================

// decode converts a state into the specified shape.
func decode[T any](s vm.State) (T, error) {
	var v T

	data, err := json.Marshal(s)
	if err != nil {
		return v, err
	}

	if err := json.Unmarshal(data, &v); err != nil {
		return v, err
	}

	return v, nil
}

// encode converts a shape into a state. A shape that can't be represented
// as JSON degrades to an empty state.
func encode(v any) vm.State {
	data, err := json.Marshal(v)
	if err != nil {
		return vm.State{}
	}

	var s vm.State
	if err := json.Unmarshal(data, &s); err != nil || s == nil {
		return vm.State{}
	}

	return s
}

// parseInt parses a whole number argument.
func parseInt(name string, arg string) (int64, error) {
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a whole number: %w", name, arg, ErrInvalidArgs)
	}

	return n, nil
}

// parseUint parses a whole positive number argument.
func parseUint(name string, arg string) (uint64, error) {
	n, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a whole positive number: %w", name, arg, ErrInvalidArgs)
	}

	return n, nil
}

// update decodes the state into its shape, applies the change and encodes
// the result for the VM to merge.
func update[T any](fn func(v *T) error) vm.Action {
	return func(s vm.State) (vm.State, error) {
		v, err := decode[T](s)
		if err != nil {
			return nil, err
		}

		if err := fn(&v); err != nil {
			return nil, err
		}

		return encode(v), nil
	}
}
