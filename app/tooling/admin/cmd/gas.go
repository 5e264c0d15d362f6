package cmd

import (
	"fmt"

	"github.com/ardanlabs/ledgersim/foundation/contract/gas"
	"github.com/spf13/cobra"
)

var (
	gasLimit uint64
	gasPrice uint64
)

// gasCmd represents the gas command
var gasCmd = &cobra.Command{
	Use:   "gas [operation...]",
	Short: "Estimate and simulate the gas cost of operations",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			args = gas.Operations
		}

		gs := gas.New()

		price := gasPrice
		if price == 0 {
			price = gs.CurrentGasPrice()
		}
		fmt.Printf("gas price: %d\n\n", price)

		for _, op := range args {
			limit := gasLimit
			if limit == 0 {
				limit = gs.EstimateGas(op)
			}

			res := gs.ExecuteWithGas(op, nil, limit, price)
			switch res.Success {
			case true:
				fmt.Printf("%-9s estimate:%-8d limit:%-8d used:%-8d refunded:%-8d cost:%d\n", op, gs.EstimateGas(op), limit, res.GasUsed, res.GasRefunded, res.Cost)
			default:
				fmt.Printf("%-9s estimate:%-8d limit:%-8d used:%-8d REVERTED: %s\n", op, gs.EstimateGas(op), limit, res.GasUsed, res.RevertReason)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(gasCmd)
	gasCmd.Flags().Uint64VarP(&gasLimit, "limit", "l", 0, "Gas limit, the estimate when zero.")
	gasCmd.Flags().Uint64VarP(&gasPrice, "price", "p", 0, "Gas price, the current price when zero.")
}
