package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ardanlabs/ledgersim/foundation/blockchain/chain"
	"github.com/spf13/cobra"
)

var (
	blocks  int
	timeout time.Duration
)

// mineCmd represents the mine command
var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Mine blocks on a local chain and print it",
	Run: func(cmd *cobra.Command, args []string) {
		ch, err := chain.New(difficulty, nil, chain.WithEvHandler(evHandler()))
		if err != nil {
			log.Fatal(err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		for i := range blocks {
			start := time.Now()

			b, err := ch.AddBlockContext(ctx, fmt.Sprintf("block %d", i+1))
			if err != nil {
				log.Fatal(err)
			}

			fmt.Printf("mined block %d with nonce %d in %v\n", b.Index, b.Nonce, time.Since(start))
		}

		fmt.Println()
		printBlocks(ch.Blocks(), ch.Difficulty())
		fmt.Printf("\nvalid: %v\n", ch.IsValid())
	},
}

func init() {
	rootCmd.AddCommand(mineCmd)
	mineCmd.Flags().IntVarP(&blocks, "blocks", "n", 3, "Number of blocks to mine.")
	mineCmd.Flags().DurationVarP(&timeout, "timeout", "t", time.Minute, "How long mining may take in total.")
}
