package gas_test

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/ardanlabs/ledgersim/foundation/contract/gas"
	"github.com/ardanlabs/ledgersim/foundation/contract/vm"
)

func Test_EstimateGas(t *testing.T) {
	tt := []struct {
		op   string
		cost uint64
	}{
		{gas.OpTransfer, 21_000},
		{gas.OpStore, 45_000},
		{"READ", 2_100},
		{gas.OpComplex, 300_000},
		{gas.OpDeploy, 1_250_000},
		{"unknown", 21_000},
	}

	s := gas.New()
	for _, tst := range tt {
		t.Run(tst.op, func(t *testing.T) {
			if got := s.EstimateGas(tst.op); got != tst.cost {
				t.Logf("Test %s:\tgot: %d", tst.op, got)
				t.Logf("Test %s:\texp: %d", tst.op, tst.cost)
				t.Fatalf("Test %s:\tShould get the right estimate.", tst.op)
			}
		})
	}
}

func Test_Ranges(t *testing.T) {
	s := gas.New(gas.WithRand(rand.New(rand.NewPCG(1, 2))))

	for i := 0; i < 1000; i++ {
		if c := s.RequiredGas(gas.OpComplex); c < gas.CostComplexMin || c > gas.CostComplexMax {
			t.Fatalf("Should keep complex costs in range: got %d", c)
		}
		if c := s.RequiredGas(gas.OpDeploy); c < gas.CostDeployMin || c > gas.CostDeployMax {
			t.Fatalf("Should keep deploy costs in range: got %d", c)
		}
		if p := s.CurrentGasPrice(); p < 20 || p > 50 {
			t.Fatalf("Should keep the gas price in range: got %d", p)
		}
	}

	a := gas.New(gas.WithRand(rand.New(rand.NewPCG(7, 7))))
	b := gas.New(gas.WithRand(rand.New(rand.NewPCG(7, 7))))
	if a.RequiredGas(gas.OpDeploy) != b.RequiredGas(gas.OpDeploy) {
		t.Fatalf("Should reproduce costs with the same random source.")
	}
}

func Test_ExecuteWithGas(t *testing.T) {
	s := gas.New()

	res := s.ExecuteWithGas(gas.OpTransfer, nil, 30_000, 2)
	if !res.Success || res.GasUsed != 21_000 || res.GasRefunded != 9_000 || res.Cost != 42_000 {
		t.Fatalf("Should charge the transfer cost: got %+v", res)
	}
	if res.Result != "Executed transfer" {
		t.Fatalf("Should describe the operation: got %v", res.Result)
	}

	res = s.ExecuteWithGas(gas.OpStore, nil, 30_000, 2)
	if res.Success || res.GasUsed != 30_000 || res.GasRefunded != 0 || res.Cost != 60_000 || res.RevertReason != vm.ReasonOutOfGas {
		t.Fatalf("Should consume the whole limit: got %+v", res)
	}
	if !errors.Is(res.Err, vm.ErrOutOfGas) {
		t.Fatalf("Should get ErrOutOfGas: got %v", res.Err)
	}

	res = s.ExecuteWithActualGas(gas.OpComplex, 10_000, 1, 9_000)
	if !res.Success || res.GasUsed != 9_000 || res.GasRefunded != 1_000 {
		t.Fatalf("Should charge the actual gas: got %+v", res)
	}
}
