// Package cmd contains the admin commands for the ledger simulation.
package cmd

import (
	"fmt"
	"os"

	"github.com/ardanlabs/ledgersim/foundation/blockchain/block"
	"github.com/spf13/cobra"
)

var (
	difficulty uint
	verbose    bool
)

func init() {
	rootCmd.PersistentFlags().UintVarP(&difficulty, "difficulty", "d", 2, "Number of leading zeros a block hash needs.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print the events of the engine.")
}

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "Run the ledger simulation locally",
}

// Execute runs the command named on the command line.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// evHandler returns the handler engine events are written to.
func evHandler() func(v string, args ...any) {
	if !verbose {
		return nil
	}

	return func(v string, args ...any) {
		fmt.Printf("  * "+v+"\n", args...)
	}
}

func printBlocks(blocks []block.Block, d uint) {
	for i, b := range blocks {
		state := "ok"
		switch {
		case !b.IsIntact():
			state = "BROKEN HASH"
		case !b.IsSolved(d):
			state = "NOT MINED"
		case i > 0 && b.PrevHash != blocks[i-1].Hash:
			state = "BROKEN LINK"
		}

		fmt.Printf("#%-3d nonce:%-8d hash:%s prev:%s data:%q [%s]\n", b.Index, b.Nonce, short(b.Hash), short(b.PrevHash), b.Data, state)
	}
}

func short(h string) string {
	if len(h) <= 16 {
		return h
	}
	return h[:16]
}
