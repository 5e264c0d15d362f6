package cmd

import (
	"fmt"
	"log"

	"github.com/ardanlabs/ledgersim/foundation/blockchain/hash"
	"github.com/ardanlabs/ledgersim/foundation/blockchain/merkle"
	"github.com/spf13/cobra"
)

var (
	leafIndex int
	strategy  string
)

// merkleCmd represents the merkle command
var merkleCmd = &cobra.Command{
	Use:   "merkle value [value...]",
	Short: "Build a merkle tree over the values and prove one of them",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fn, err := hash.Lookup(strategy)
		if err != nil {
			log.Fatal(err)
		}

		tree, err := merkle.NewTree(args, merkle.WithHashStrategy(fn))
		if err != nil {
			log.Fatal(err)
		}

		fmt.Print(tree)
		fmt.Printf("\nroot: %s\n\n", tree.RootHash())

		leaf, err := tree.LeafHash(leafIndex)
		if err != nil {
			log.Fatal(err)
		}

		proof, err := tree.Proof(leafIndex)
		if err != nil {
			log.Fatal(err)
		}

		fmt.Printf("proof for %q\n", args[leafIndex])
		for _, step := range proof {
			fmt.Printf("  %-5s %s\n", step.Direction, step.Hash)
		}

		fmt.Printf("verified: %v\n", merkle.VerifyProof(proof, leaf, tree.RootHash(), fn))
	},
}

func init() {
	rootCmd.AddCommand(merkleCmd)
	merkleCmd.Flags().IntVarP(&leafIndex, "index", "i", 0, "Index of the value to prove.")
	merkleCmd.Flags().StringVarP(&strategy, "strategy", "s", hash.StrategySHA256, "Hash strategy, sha256 or keccak256.")
}
