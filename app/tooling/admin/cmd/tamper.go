package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/ardanlabs/ledgersim/foundation/blockchain/chain"
	"github.com/spf13/cobra"
)

// tamperCmd represents the tamper command
var tamperCmd = &cobra.Command{
	Use:   "tamper",
	Short: "Show how editing a block breaks the chain and how re-mining heals it",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		ch, err := chain.New(difficulty, nil, chain.WithEvHandler(evHandler()))
		if err != nil {
			log.Fatal(err)
		}

		for i := range 3 {
			if _, err := ch.AddBlockContext(ctx, fmt.Sprintf("block %d", i+1)); err != nil {
				log.Fatal(err)
			}
		}

		fmt.Println("== original chain")
		printBlocks(ch.Blocks(), ch.Difficulty())
		fmt.Printf("valid: %v\n\n", ch.IsValid())

		ch.EditBlockData(1, "block 1 (tampered)")

		fmt.Println("== after editing block 1")
		printBlocks(ch.Blocks(), ch.Difficulty())
		fmt.Printf("valid: %v\n\n", ch.IsValid())

		if _, err := ch.MineBlockContext(ctx, 1); err != nil {
			log.Fatal(err)
		}

		fmt.Println("== after re-mining block 1")
		printBlocks(ch.Blocks(), ch.Difficulty())
		fmt.Printf("valid: %v\n\n", ch.IsValid())

		// Every following block has to be relinked and re-mined.
		for pos := 2; pos < ch.Len(); pos++ {
			prev, _ := ch.Block(uint64(pos - 1))
			ch.SetBlockPreviousHash(pos, prev.Hash)
			if _, err := ch.MineBlockContext(ctx, pos); err != nil {
				log.Fatal(err)
			}
		}

		fmt.Println("== after relinking and re-mining the rest")
		printBlocks(ch.Blocks(), ch.Difficulty())
		fmt.Printf("valid: %v\n", ch.IsValid())
	},
}

func init() {
	rootCmd.AddCommand(tamperCmd)
}
