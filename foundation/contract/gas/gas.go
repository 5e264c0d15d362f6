// Package gas provides flat-cost gas accounting for single operations that
// don't run through the VM.
package gas

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/ardanlabs/ledgersim/foundation/contract/vm"
)

// Set of operations with a known cost.
const (
	OpTransfer = "transfer"
	OpStore    = "store"
	OpRead     = "read"
	OpComplex  = "complex"
	OpDeploy   = "deploy"
)

// Set of gas costs for the known operations.
const (
	CostTransfer   uint64 = 21_000
	CostStore      uint64 = 45_000
	CostRead       uint64 = 2_100
	CostComplexMin uint64 = 100_000
	CostComplexMax uint64 = 500_000
	CostDeployMin  uint64 = 500_000
	CostDeployMax  uint64 = 2_000_000
)

// Bounds of the simulated gas price.
const (
	BasePrice        uint64 = 20
	PriceFluctuation uint64 = 30
)

// Operations lists the operations with a known cost.
var Operations = []string{OpTransfer, OpStore, OpRead, OpComplex, OpDeploy}

// System prices operations. The random source drives the cost of the ranged
// operations and the gas price.
type System struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// WithRand sets the random source. It is used by tests to make the ranged
// costs and the gas price reproducible.
func WithRand(rnd *rand.Rand) func(s *System) {
	return func(s *System) {
		if rnd != nil {
			s.rnd = rnd
		}
	}
}

// New constructs a gas system.
func New(options ...func(s *System)) *System {
	s := System{
		rnd: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// EstimateGas returns the nominal cost of the operation. Ranged operations
// estimate the middle of their range. Unknown operations cost a transfer.
func (s *System) EstimateGas(op string) uint64 {
	switch strings.ToLower(op) {
	case OpStore:
		return CostStore
	case OpRead:
		return CostRead
	case OpComplex:
		return (CostComplexMin + CostComplexMax) / 2
	case OpDeploy:
		return (CostDeployMin + CostDeployMax) / 2
	default:
		return CostTransfer
	}
}

// RequiredGas simulates the actual cost of running the operation once.
func (s *System) RequiredGas(op string) uint64 {
	switch strings.ToLower(op) {
	case OpComplex:
		return s.between(CostComplexMin, CostComplexMax)
	case OpDeploy:
		return s.between(CostDeployMin, CostDeployMax)
	default:
		return s.EstimateGas(op)
	}
}

// CurrentGasPrice returns the base price plus a random fluctuation.
func (s *System) CurrentGasPrice() uint64 {
	return BasePrice + s.between(0, PriceFluctuation)
}

// ExecuteWithGas simulates the cost of the operation and charges it against
// the gas limit. The arguments don't affect the cost.
func (s *System) ExecuteWithGas(op string, args []any, gasLimit uint64, gasPrice uint64) vm.Result {
	return s.ExecuteWithActualGas(op, gasLimit, gasPrice, s.RequiredGas(op))
}

// ExecuteWithActualGas charges a cost measured elsewhere, such as a VM run,
// against the gas limit. A limit below the cost consumes the whole limit.
func (s *System) ExecuteWithActualGas(op string, gasLimit uint64, gasPrice uint64, required uint64) vm.Result {
	if gasLimit < required {
		return vm.Result{
			GasUsed:      gasLimit,
			Cost:         gasLimit * gasPrice,
			RevertReason: vm.ReasonOutOfGas,
			Err:          fmt.Errorf("%s: required[%d]: limit[%d]: %w", op, required, gasLimit, vm.ErrOutOfGas),
		}
	}

	return vm.Result{
		Success:     true,
		GasUsed:     required,
		GasRefunded: gasLimit - required,
		Cost:        required * gasPrice,
		Result:      "Executed " + op,
	}
}

// =============================================================================

// between returns a uniform value in the inclusive range.
func (s *System) between(lo uint64, hi uint64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return lo + s.rnd.Uint64N(hi-lo+1)
}
