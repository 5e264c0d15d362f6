package template

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/ledgersim/foundation/contract/vm"
)

// Set of template ids.
const (
	SimpleStorageID   = "simple-storage"
	CounterID         = "counter"
	TokenID           = "token"
	GuardedTransferID = "guarded-transfer"
)

// TokenOwner is the account every token call is made from.
const TokenOwner = "owner"

// GuardedTransferLimit is the largest amount a guarded transfer accepts.
const GuardedTransferLimit = 100

// StorageState is the state of a SimpleStorage contract.
type StorageState struct {
	Value int64 `json:"value"`
}

// CounterState is the state of a Counter contract.
type CounterState struct {
	Count int64 `json:"count"`
}

// TokenState is the state of a MyToken contract.
type TokenState struct {
	TotalSupply uint64            `json:"totalSupply"`
	Balances    map[string]uint64 `json:"balances"`
}

// GuardedState is the state of a GuardedTransfer contract.
type GuardedState struct {
	Balance int64 `json:"balance"`
}

var catalog = map[string]Template{
	SimpleStorageID: {
		ID:          SimpleStorageID,
		Name:        "SimpleStorage",
		Description: "Store and retrieve a single number.",
		Functions: []Function{
			{Name: "setValue", Args: []string{"number"}, Cost: 5000},
			{Name: "getValue", Args: []string{}, Cost: 1000},
		},
		initial: StorageState{},
		steps: map[string]StepsFunc{
			"setValue": func(args []string) ([]vm.Step, error) {
				val, err := parseInt("number", args[0])
				if err != nil {
					return nil, err
				}

				return []vm.Step{{Name: "STORE", Cost: 5000, Action: update(func(s *StorageState) error {
					s.Value = val
					return nil
				})}}, nil
			},
			"getValue": func(args []string) ([]vm.Step, error) {
				return []vm.Step{{Name: "LOAD", Cost: 1000}}, nil
			},
		},
	},

	CounterID: {
		ID:          CounterID,
		Name:        "Counter",
		Description: "Increment a counter value.",
		Functions: []Function{
			{Name: "increment", Args: []string{}, Cost: 2000},
			{Name: "reset", Args: []string{}, Cost: 1500},
		},
		initial: CounterState{},
		steps: map[string]StepsFunc{
			"increment": func(args []string) ([]vm.Step, error) {
				return []vm.Step{{Name: "ADD", Cost: 2000, Action: update(func(s *CounterState) error {
					s.Count++
					return nil
				})}}, nil
			},
			"reset": func(args []string) ([]vm.Step, error) {
				return []vm.Step{{Name: "ZERO", Cost: 1500, Action: update(func(s *CounterState) error {
					s.Count = 0
					return nil
				})}}, nil
			},
		},
	},

	TokenID: {
		ID:          TokenID,
		Name:        "MyToken",
		Description: "Simple token with mint and transfer.",
		Functions: []Function{
			{Name: "transfer", Args: []string{"address", "amount"}, Cost: 8000},
			{Name: "mint", Args: []string{"amount"}, Cost: 5000},
		},
		initial: TokenState{
			TotalSupply: 1000,
			Balances:    map[string]uint64{TokenOwner: 1000},
		},
		steps: map[string]StepsFunc{
			"transfer": func(args []string) ([]vm.Step, error) {
				to := args[0]
				if to == "" {
					return nil, fmt.Errorf("address: empty: %w", ErrInvalidArgs)
				}

				amount, err := parseUint("amount", args[1])
				if err != nil {
					return nil, err
				}

				return []vm.Step{{Name: "TRANSFER", Cost: 8000, Action: update(func(s *TokenState) error {
					if s.Balances == nil || s.Balances[TokenOwner] < amount {
						return errors.New("Insufficient balance")
					}
					s.Balances[TokenOwner] -= amount
					s.Balances[to] += amount
					return nil
				})}}, nil
			},
			"mint": func(args []string) ([]vm.Step, error) {
				amount, err := parseUint("amount", args[0])
				if err != nil {
					return nil, err
				}

				return []vm.Step{{Name: "MINT", Cost: 5000, Action: update(func(s *TokenState) error {
					if s.Balances == nil {
						s.Balances = make(map[string]uint64)
					}
					s.TotalSupply += amount
					s.Balances[TokenOwner] += amount
					return nil
				})}}, nil
			},
		},
	},

	GuardedTransferID: {
		ID:          GuardedTransferID,
		Name:        "GuardedTransfer",
		Description: "Transfer guarded by require checks with a cost that grows with the amount.",
		Functions: []Function{
			{Name: "transfer", Args: []string{"amount"}, Cost: 7000},
		},
		initial: GuardedState{Balance: 1000},
		steps: map[string]StepsFunc{
			"transfer": func(args []string) ([]vm.Step, error) {
				amount, err := parseInt("amount", args[0])
				if err != nil {
					return nil, err
				}

				return GuardedTransferSteps(amount), nil
			},
		},
	},
}

// GuardedTransferSteps returns the steps of a guarded transfer. The require
// checks revert on a non positive amount or an amount above the limit. The
// work step costs 500 gas per unit transferred.
func GuardedTransferSteps(amount int64) []vm.Step {
	return []vm.Step{
		{Name: "REQUIRE_POS", Cost: 1000, Action: func(s vm.State) (vm.State, error) {
			if amount <= 0 {
				return nil, errors.New("Require failed: Amount must be positive")
			}
			return nil, nil
		}},
		{Name: "REQUIRE_LIMIT", Cost: 1000, Action: func(s vm.State) (vm.State, error) {
			if amount > GuardedTransferLimit {
				return nil, fmt.Errorf("Overflow: Amount exceeds limit (%d)", GuardedTransferLimit)
			}
			return nil, nil
		}},
		{Name: "LOOP_WORK", Cost: uint64(max(0, amount)) * 500},
		{Name: "UPDATE_BAL", Cost: 5000, Action: update(func(s *GuardedState) error {
			s.Balance -= amount
			return nil
		})},
	}
}
