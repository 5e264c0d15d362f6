package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/ardanlabs/ledgersim/foundation/blockchain/network"
	"github.com/spf13/cobra"
)

var peerNames []string

// consensusCmd represents the consensus command
var consensusCmd = &cobra.Command{
	Use:   "consensus",
	Short: "Fork the replicas of a network and resolve them with consensus",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		if len(peerNames) < 3 {
			log.Fatal("consensus needs at least three peers")
		}

		net, err := network.New(difficulty, network.WithEvHandler(evHandler()))
		if err != nil {
			log.Fatal(err)
		}

		ids := make([]string, len(peerNames))
		for i, name := range peerNames {
			if ids[i], err = net.AddPeer(name); err != nil {
				log.Fatal(err)
			}
		}

		// The first peer shares one block with everyone.
		if _, err := net.MineAndBroadcastContext(ctx, ids[0], "shared"); err != nil {
			log.Fatal(err)
		}

		// The second peer forks ahead on its own.
		for i := range 2 {
			if _, err := net.MineBlockContext(ctx, ids[1], fmt.Sprintf("fork %d", i+1)); err != nil {
				log.Fatal(err)
			}
		}

		// The third peer tampers with its replica.
		net.TamperBlock(ids[2], 1, "tampered")

		printStatuses(net)

		res := net.RunConsensus()
		winner, _ := net.Peer(res.WinnerID)
		fmt.Printf("\nwinner: %s valid: %d invalid: %d\n\n", winner.Name, len(res.ValidPeers), len(res.InvalidPeers))

		printStatuses(net)
	},
}

func printStatuses(net *network.Network) {
	for _, st := range net.Statuses() {
		fmt.Printf("%-8s length:%d valid:%-5v tip:%s\n", st.Name, st.Length, st.Valid, short(st.LatestBlockHash))
	}
}

func init() {
	rootCmd.AddCommand(consensusCmd)
	consensusCmd.Flags().StringSliceVarP(&peerNames, "peers", "p", []string{"alice", "bob", "carol"}, "Names of the peers.")
}
