// Package contract provides the business access to the contract sandbox. It
// owns the deployed instances and runs calls against them through the VM.
package contract

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/ardanlabs/ledgersim/foundation/blockchain/signature"
	"github.com/ardanlabs/ledgersim/foundation/contract/gas"
	"github.com/ardanlabs/ledgersim/foundation/contract/template"
	"github.com/ardanlabs/ledgersim/foundation/contract/vm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// Set of error variables for sandbox operations.
var (
	ErrNotFound        = errors.New("contract not found")
	ErrUnknownTemplate = template.ErrNotFound
	ErrUnknownFunction = template.ErrUnknownFunction
	ErrInvalidArgs     = template.ErrInvalidArgs
	ErrUnknownOp       = errors.New("unknown operation")
)

// EventHandler defines a function that is called when events occur in the
// processing of the sandbox.
type EventHandler func(v string, args ...any)

// Config represents the configuration required to construct the sandbox.
type Config struct {
	StepDelay time.Duration
	Gas       *gas.System
	EvHandler EventHandler
}

// Info is a point in time view of a deployed instance.
type Info struct {
	ID         string              `json:"id"`
	Address    string              `json:"address"`
	TemplateID string              `json:"template_id"`
	Name       string              `json:"name"`
	Functions  []template.Function `json:"functions"`
	State      any                 `json:"state"`
	Calls      int                 `json:"calls"`
	DeployedAt time.Time           `json:"deployed_at"`
}

// StepTrace records a step that completed during a call.
type StepTrace struct {
	Index        int    `json:"index"`
	Name         string `json:"name"`
	Cost         uint64 `json:"cost"`
	TotalGasUsed uint64 `json:"total_gas_used"`
}

// CallResult is the outcome of a call against an instance.
type CallResult struct {
	vm.Result
	ContractID string      `json:"contract_id"`
	Function   string      `json:"function"`
	GasLimit   uint64      `json:"gas_limit"`
	GasPrice   uint64      `json:"gas_price"`
	Steps      []StepTrace `json:"steps"`
	State      any         `json:"state"`
}

// instance is a deployed contract. The mutex serializes calls since a VM is
// not safe for concurrent use.
type instance struct {
	mu         sync.Mutex
	id         string
	address    string
	tmpl       template.Template
	vm         *vm.VM
	calls      int
	deployedAt time.Time
}

// Core manages the set of APIs for sandbox access.
type Core struct {
	mu        sync.RWMutex
	instances map[string]*instance
	order     []string
	deployer  common.Address
	nonce     uint64
	gas       *gas.System
	stepDelay time.Duration
	evHandler EventHandler
}

// New constructs a sandbox with no deployed instances. Instance addresses
// are derived from a freshly generated deployer account.
func New(cfg Config) (*Core, error) {
	ev := cfg.EvHandler
	if ev == nil {
		ev = func(string, ...any) {}
	}

	gs := cfg.Gas
	if gs == nil {
		gs = gas.New()
	}

	pk, err := signature.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate deployer key: %w", err)
	}

	c := Core{
		instances: make(map[string]*instance),
		deployer:  common.HexToAddress(signature.Address(pk)),
		gas:       gs,
		stepDelay: cfg.StepDelay,
		evHandler: ev,
	}

	return &c, nil
}

// Templates returns the templates that can be deployed.
func (c *Core) Templates() []template.Template {
	return template.List()
}

// Deploy creates a new instance of the specified template.
func (c *Core) Deploy(templateID string) (Info, error) {
	tmpl, err := template.Lookup(templateID)
	if err != nil {
		return Info{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	inst := instance{
		id:         uuid.NewString(),
		address:    crypto.CreateAddress(c.deployer, c.nonce).String(),
		tmpl:       tmpl,
		vm:         vm.New(tmpl.InitialState(), vm.WithStepDelay(c.stepDelay), vm.WithEvHandler(vm.EventHandler(c.evHandler))),
		deployedAt: time.Now().UTC(),
	}
	c.nonce++

	c.instances[inst.id] = &inst
	c.order = append(c.order, inst.id)

	c.evHandler("contract: Deploy: id[%s]: template[%s]: address[%s]", inst.id, tmpl.ID, inst.address)

	return inst.info(), nil
}

// Instances returns every deployed instance in deployment order.
func (c *Core) Instances() []Info {
	c.mu.RLock()
	insts := make([]*instance, len(c.order))
	for i, id := range c.order {
		insts[i] = c.instances[id]
	}
	c.mu.RUnlock()

	infos := make([]Info, len(insts))
	for i, inst := range insts {
		infos[i] = inst.info()
	}

	return infos
}

// Instance returns the specified deployed instance.
func (c *Core) Instance(id string) (Info, error) {
	inst, err := c.lookup(id)
	if err != nil {
		return Info{}, err
	}

	return inst.info(), nil
}

// Call runs the function against the instance. A gas limit of zero uses the
// cost of the steps the call runs and a gas price of zero uses the current
// gas price. A failed call leaves the state of the instance untouched.
func (c *Core) Call(ctx context.Context, id string, function string, args []string, gasLimit uint64, gasPrice uint64) (CallResult, error) {
	inst, err := c.lookup(id)
	if err != nil {
		return CallResult{}, err
	}

	fn, exists := inst.tmpl.Function(function)
	if !exists {
		return CallResult{}, fmt.Errorf("%s.%s: %w", inst.tmpl.Name, function, ErrUnknownFunction)
	}

	steps, err := inst.tmpl.Steps(function, args)
	if err != nil {
		return CallResult{}, err
	}

	if gasLimit == 0 {
		gasLimit = stepsCost(steps)
		if gasLimit == 0 {
			gasLimit = fn.Cost
		}
	}

	if gasPrice == 0 {
		gasPrice = c.gas.CurrentGasPrice()
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	traces := []StepTrace{}
	onStep := func(index int, cost uint64, totalGasUsed uint64) {
		traces = append(traces, StepTrace{
			Index:        index,
			Name:         steps[index].Name,
			Cost:         cost,
			TotalGasUsed: totalGasUsed,
		})
	}

	res := inst.vm.Execute(ctx, steps, gasLimit, gasPrice, onStep)
	inst.calls++

	switch res.Success {
	case true:
		c.evHandler("contract: Call: id[%s]: fn[%s]: gas[%d]: cost[%d]", id, function, res.GasUsed, res.Cost)
	default:
		c.evHandler("contract: Call: id[%s]: fn[%s]: REVERTED: reason[%s]: gas[%d]", id, function, res.RevertReason, res.GasUsed)
	}

	cr := CallResult{
		Result:     res,
		ContractID: id,
		Function:   function,
		GasLimit:   gasLimit,
		GasPrice:   gasPrice,
		Steps:      traces,
		State:      template.Decode(inst.tmpl.ID, inst.vm.State()),
	}

	return cr, nil
}

// =============================================================================

// GasPrice returns the current gas price.
func (c *Core) GasPrice() uint64 {
	return c.gas.CurrentGasPrice()
}

// EstimateGas returns an estimate of the gas the operation needs.
func (c *Core) EstimateGas(op string) (uint64, error) {
	if !knownOp(op) {
		return 0, fmt.Errorf("%q: %w", op, ErrUnknownOp)
	}

	return c.gas.EstimateGas(op), nil
}

// ExecuteGas simulates running the operation under the gas limit. A gas
// price of zero uses the current gas price.
func (c *Core) ExecuteGas(op string, gasLimit uint64, gasPrice uint64) (vm.Result, error) {
	if !knownOp(op) {
		return vm.Result{}, fmt.Errorf("%q: %w", op, ErrUnknownOp)
	}

	if gasPrice == 0 {
		gasPrice = c.gas.CurrentGasPrice()
	}

	res := c.gas.ExecuteWithGas(op, nil, gasLimit, gasPrice)
	c.evHandler("contract: ExecuteGas: op[%s]: success[%v]: gas[%d]: cost[%d]", op, res.Success, res.GasUsed, res.Cost)

	return res, nil
}

// =============================================================================

func (c *Core) lookup(id string) (*instance, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	inst, exists := c.instances[id]
	if !exists {
		return nil, fmt.Errorf("%q: %w", id, ErrNotFound)
	}

	return inst, nil
}

func (inst *instance) info() Info {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	return Info{
		ID:         inst.id,
		Address:    inst.address,
		TemplateID: inst.tmpl.ID,
		Name:       inst.tmpl.Name,
		Functions:  inst.tmpl.Functions,
		State:      template.Decode(inst.tmpl.ID, inst.vm.State()),
		Calls:      inst.calls,
		DeployedAt: inst.deployedAt,
	}
}

// stepsCost returns the gas the steps need, capped at the largest limit.
func stepsCost(steps []vm.Step) uint64 {
	var total uint64
	for _, step := range steps {
		if step.Cost > math.MaxUint64-total {
			return math.MaxUint64
		}
		total += step.Cost
	}

	return total
}

func knownOp(op string) bool {
	op = strings.ToLower(op)
	for _, known := range gas.Operations {
		if known == op {
			return true
		}
	}

	return false
}
