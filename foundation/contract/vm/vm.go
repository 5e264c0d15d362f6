// Package vm executes an ordered list of gas-costed steps against a contract
// state with snapshot and rollback semantics.
package vm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Set of revert reasons with special meaning.
const (
	ReasonOutOfGas        = "Out of gas"
	ReasonInvalidGasLimit = "Invalid gas limit"
	reasonFailed          = "Execution failed"
)

// Set of error variables for the distinguished failures.
var (
	ErrOutOfGas        = errors.New("out of gas")
	ErrInvalidGasLimit = errors.New("invalid gas limit")
)

// EventHandler defines a function that is called when events occur in the
// processing of an execution.
type EventHandler func(v string, args ...any)

// Action performs the work of a step. A returned state is merged into the
// current state one key at a time. A returned error reverts the execution
// with the error text as the reason.
type Action func(s State) (State, error)

// Step is one gas-costed unit of work.
type Step struct {
	Name   string
	Cost   uint64
	Action Action
}

// StepFunc is called after every successful step with its index, its cost
// and the gas used so far.
type StepFunc func(index int, cost uint64, totalGasUsed uint64)

// Snapshot is a deep copy of the contract state.
type Snapshot struct {
	State State
}

// Result is the outcome of an execution.
type Result struct {
	Success      bool   `json:"success"`
	GasUsed      uint64 `json:"gas_used"`
	GasRefunded  uint64 `json:"gas_refunded"`
	Cost         uint64 `json:"cost"`
	Result       any    `json:"result,omitempty"`
	RevertReason string `json:"revert_reason,omitempty"`
	Err          error  `json:"-"`
}

// =============================================================================

// VM holds the state of a single contract instance. A VM is not safe for
// concurrent use. Callers must serialize access to an instance.
type VM struct {
	state     State
	stepDelay time.Duration
	evHandler EventHandler
}

// WithStepDelay sets how long the VM pauses before every step.
func WithStepDelay(d time.Duration) func(vm *VM) {
	return func(vm *VM) {
		vm.stepDelay = d
	}
}

// WithEvHandler provides a handler that receives events about executions.
func WithEvHandler(ev EventHandler) func(vm *VM) {
	return func(vm *VM) {
		if ev != nil {
			vm.evHandler = ev
		}
	}
}

// New constructs a VM holding a deep copy of the initial state.
func New(initial State, options ...func(vm *VM)) *VM {
	vm := VM{
		state:     initial.Copy(),
		evHandler: func(string, ...any) {},
	}

	for _, option := range options {
		option(&vm)
	}

	return &vm
}

// CaptureState returns a deep copy of the current state.
func (vm *VM) CaptureState() Snapshot {
	return Snapshot{State: vm.state.Copy()}
}

// RestoreState replaces the current state with a deep copy of the snapshot.
func (vm *VM) RestoreState(snapshot Snapshot) {
	vm.state = snapshot.State.Copy()
}

// SetState replaces the current state with a deep copy of the specified state.
func (vm *VM) SetState(s State) {
	vm.state = s.Copy()
}

// State returns the current state.
func (vm *VM) State() State {
	return vm.state
}

// Execute runs the steps in order. Before a step runs its cost is checked
// against the gas limit. Running out of gas consumes the whole limit. Any
// other failure consumes only the gas used by the steps that completed. On
// any failure the state is restored to what it was before the execution.
//
// The VM pauses for the configured step delay before every step. Cancelling
// the context reverts the execution with the context error as the reason.
func (vm *VM) Execute(ctx context.Context, steps []Step, gasLimit uint64, gasPrice uint64, onStep StepFunc) Result {
	if gasLimit == 0 {
		return Result{
			RevertReason: ReasonInvalidGasLimit,
			Err:          ErrInvalidGasLimit,
		}
	}

	snapshot := vm.CaptureState()

	var totalGasUsed uint64
	for i, step := range steps {
		// totalGasUsed never exceeds gasLimit so the subtraction can't wrap.
		if step.Cost > gasLimit-totalGasUsed {
			vm.RestoreState(snapshot)
			vm.evHandler("vm: Execute: step[%d]: %s: OUT OF GAS: used[%d]: cost[%d]: limit[%d]", i, step.Name, totalGasUsed, step.Cost, gasLimit)

			return Result{
				GasUsed:      gasLimit,
				Cost:         gasLimit * gasPrice,
				RevertReason: ReasonOutOfGas,
				Err:          ErrOutOfGas,
			}
		}

		if err := vm.pause(ctx); err != nil {
			return vm.revert(snapshot, i, step, err, totalGasUsed, gasLimit, gasPrice)
		}

		if err := vm.run(step); err != nil {
			return vm.revert(snapshot, i, step, err, totalGasUsed, gasLimit, gasPrice)
		}

		totalGasUsed += step.Cost
		if onStep != nil {
			onStep(i, step.Cost, totalGasUsed)
		}
	}

	vm.evHandler("vm: Execute: SUCCESS: steps[%d]: used[%d]: limit[%d]", len(steps), totalGasUsed, gasLimit)

	return Result{
		Success:     true,
		GasUsed:     totalGasUsed,
		GasRefunded: gasLimit - totalGasUsed,
		Cost:        totalGasUsed * gasPrice,
		Result:      vm.state.Copy(),
	}
}

// =============================================================================

// pause waits for the step delay or the cancellation of the context.
func (vm *VM) pause(ctx context.Context) error {
	if vm.stepDelay <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(vm.stepDelay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// run executes the action of the step and merges the result into the
// state. A panic inside the action is reported as an error.
func (vm *VM) run(step Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	if step.Action == nil {
		return nil
	}

	result, err := step.Action(vm.state)
	if err != nil {
		return err
	}

	for k, v := range result {
		vm.state[k] = v
	}

	return nil
}

// revert restores the snapshot and reports the failed step.
func (vm *VM) revert(snapshot Snapshot, index int, step Step, err error, totalGasUsed uint64, gasLimit uint64, gasPrice uint64) Result {
	vm.RestoreState(snapshot)

	reason := err.Error()
	if reason == "" {
		reason = reasonFailed
	}

	vm.evHandler("vm: Execute: step[%d]: %s: REVERTED: %s: used[%d]", index, step.Name, reason, totalGasUsed)

	return Result{
		GasUsed:      totalGasUsed,
		GasRefunded:  gasLimit - totalGasUsed,
		Cost:         totalGasUsed * gasPrice,
		RevertReason: reason,
		Err:          err,
	}
}
