package network_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ardanlabs/ledgersim/foundation/blockchain/block"
	"github.com/ardanlabs/ledgersim/foundation/blockchain/network"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func newNetwork(t *testing.T, names ...string) (*network.Network, []string) {
	t.Helper()

	n, err := network.New(1)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a network: %s", failed, err)
	}

	ids := make([]string, len(names))
	for i, name := range names {
		id, err := n.AddPeer(name)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to add peer %s: %s", failed, name, err)
		}
		ids[i] = id
	}

	return n, ids
}

func sameChain(a, b []block.Block) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func Test_Peers(t *testing.T) {
	t.Log("Given the need to manage the peers of a network.")
	{
		t.Logf("\tTest 0:\tWhen adding three peers.")
		{
			n, ids := newNetwork(t, "alice", "bob", "carol")

			peers := n.Peers()
			if len(peers) != 3 {
				t.Fatalf("\t%s\tTest 0:\tShould have three peers: got %d", failed, len(peers))
			}
			t.Logf("\t%s\tTest 0:\tShould have three peers.", success)

			for i, p := range peers {
				if p.ID != ids[i] {
					t.Fatalf("\t%s\tTest 0:\tShould keep join order.", failed)
				}
				if len(p.Chain) != 1 || p.Chain[0] != n.Genesis() {
					t.Fatalf("\t%s\tTest 0:\tShould seed %s with the shared genesis.", failed, p.Name)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould seed every peer with the shared genesis in join order.", success)

			if ids[0] == ids[1] || ids[1] == ids[2] {
				t.Fatalf("\t%s\tTest 0:\tShould get unique ids.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould get unique ids.", success)

			for _, st := range n.Statuses() {
				if err := st.Verify(); err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould get verifiable statuses: %s", failed, err)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould get verifiable statuses.", success)
		}

		t.Logf("\tTest 1:\tWhen removing peers.")
		{
			n, ids := newNetwork(t, "alice", "bob")

			n.RemovePeer("unknown")
			n.RemovePeer(ids[0])

			if _, exists := n.Peer(ids[0]); exists {
				t.Fatalf("\t%s\tTest 1:\tShould not find the removed peer.", failed)
			}
			if len(n.Peers()) != 1 {
				t.Fatalf("\t%s\tTest 1:\tShould have one peer left.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould remove the peer and ignore unknown ids.", success)
		}
	}
}

func Test_Broadcast(t *testing.T) {
	t.Log("Given the need to propagate mined blocks.")
	{
		t.Logf("\tTest 0:\tWhen a peer mines and broadcasts.")
		{
			n, ids := newNetwork(t, "alice", "bob", "carol")

			if !n.MineAndBroadcast(ids[0], "tx1") {
				t.Fatalf("\t%s\tTest 0:\tShould be able to mine and broadcast.", failed)
			}

			peers := n.Peers()
			for _, p := range peers[1:] {
				if !sameChain(p.Chain, peers[0].Chain) {
					t.Fatalf("\t%s\tTest 0:\tShould sync %s.", failed, p.Name)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould sync every peer.", success)

			if n.MineAndBroadcast("unknown", "tx") {
				t.Fatalf("\t%s\tTest 0:\tShould report false for an unknown peer.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould report false for an unknown peer.", success)
		}

		t.Logf("\tTest 1:\tWhen a block arrives out of order.")
		{
			n, ids := newNetwork(t, "alice", "bob")

			n.MineBlock(ids[0], "tx1")
			b2, ok := n.MineBlock(ids[0], "tx2")
			if !ok {
				t.Fatalf("\t%s\tTest 1:\tShould be able to mine locally.", failed)
			}

			n.BroadcastBlock(ids[0], b2)

			bob, _ := n.Peer(ids[1])
			if len(bob.Chain) != 1 {
				t.Fatalf("\t%s\tTest 1:\tShould leave bob unsynchronized: got %d blocks", failed, len(bob.Chain))
			}
			t.Logf("\t%s\tTest 1:\tShould leave bob unsynchronized.", success)

			alice, _ := n.Peer(ids[0])
			if !n.DeliverBlock(ids[1], alice.Chain[1]) || !n.DeliverBlock(ids[1], alice.Chain[2]) {
				t.Fatalf("\t%s\tTest 1:\tShould accept blocks delivered in order.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould accept blocks delivered in order.", success)

			if n.DeliverBlock("unknown", b2) {
				t.Fatalf("\t%s\tTest 1:\tShould ignore unknown peers.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould ignore unknown peers.", success)
		}

		t.Logf("\tTest 2:\tWhen mining is cancelled.")
		{
			n, ids := newNetwork(t, "alice", "bob")

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			if _, err := n.MineAndBroadcastContext(ctx, "unknown", "tx"); !errors.Is(err, network.ErrPeerNotFound) {
				t.Fatalf("\t%s\tTest 2:\tShould get ErrPeerNotFound: got %v", failed, err)
			}

			// Mining at difficulty 1 can succeed on the first attempt, so the
			// budget forces the failure.
			c, _ := n.Chain(ids[0])
			c.SetDifficulty(64)
			if _, err := n.MineAndBroadcastContext(ctx, ids[0], "tx"); !errors.Is(err, context.Canceled) {
				t.Fatalf("\t%s\tTest 2:\tShould get context.Canceled: got %v", failed, err)
			}

			for _, p := range n.Peers() {
				if len(p.Chain) != 1 {
					t.Fatalf("\t%s\tTest 2:\tShould not change %s.", failed, p.Name)
				}
			}
			t.Logf("\t%s\tTest 2:\tShould change nothing when mining fails.", success)
		}
	}
}

func Test_Consensus(t *testing.T) {
	t.Log("Given the need to resolve forks with the longest valid chain.")
	{
		t.Logf("\tTest 0:\tWhen one peer is ahead and another is tampered.")
		{
			n, ids := newNetwork(t, "A", "B", "C")
			a, b, c := ids[0], ids[1], ids[2]

			n.MineAndBroadcast(a, "tx1")
			n.MineBlock(a, "tx2")

			if !n.TamperBlock(c, 1, "forged") {
				t.Fatalf("\t%s\tTest 0:\tShould be able to tamper with C.", failed)
			}

			res := n.RunConsensus()

			if res.WinnerID != a {
				t.Fatalf("\t%s\tTest 0:\tShould pick A as the winner.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould pick A as the winner.", success)

			if len(res.ValidPeers) != 2 || res.ValidPeers[0] != a || res.ValidPeers[1] != b {
				t.Fatalf("\t%s\tTest 0:\tShould report A and B as valid: got %v", failed, res.ValidPeers)
			}
			if len(res.InvalidPeers) != 1 || res.InvalidPeers[0] != c {
				t.Fatalf("\t%s\tTest 0:\tShould report C as invalid: got %v", failed, res.InvalidPeers)
			}
			t.Logf("\t%s\tTest 0:\tShould partition the peers.", success)

			winner, _ := n.Peer(a)
			for _, id := range []string{b, c} {
				p, _ := n.Peer(id)
				if !sameChain(p.Chain, winner.Chain) {
					t.Fatalf("\t%s\tTest 0:\tShould replace %s with the winning chain.", failed, p.Name)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould replace every other chain with the winner.", success)
		}

		t.Logf("\tTest 1:\tWhen two valid peers tie.")
		{
			n, ids := newNetwork(t, "A", "B")
			n.MineBlock(ids[0], "a1")
			n.MineBlock(ids[1], "b1")

			res := n.RunConsensus()
			if res.WinnerID != ids[0] {
				t.Fatalf("\t%s\tTest 1:\tShould pick the first peer to join.", failed)
			}

			p, _ := n.Peer(ids[1])
			if p.Chain[1].Data != "b1" {
				t.Fatalf("\t%s\tTest 1:\tShould leave an equal length valid chain alone.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould pick the first peer and leave the other alone.", success)
		}

		t.Logf("\tTest 2:\tWhen every peer is invalid.")
		{
			n, ids := newNetwork(t, "A", "B")
			n.MineAndBroadcast(ids[0], "tx1")
			n.TamperBlock(ids[0], 1, "x")
			n.TamperBlock(ids[1], 1, "y")

			res := n.RunConsensus()
			if res.WinnerID != "" || len(res.ValidPeers) != 0 || len(res.InvalidPeers) != 2 {
				t.Fatalf("\t%s\tTest 2:\tShould report total invalidity: got %+v", failed, res)
			}

			p, _ := n.Peer(ids[1])
			if p.Chain[1].Data != "y" {
				t.Fatalf("\t%s\tTest 2:\tShould leave every peer unchanged.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould report total invalidity and change nothing.", success)
		}

		t.Logf("\tTest 3:\tWhen the tampered peer is longer than the winner.")
		{
			n, ids := newNetwork(t, "A", "C")
			a, c := ids[0], ids[1]

			n.MineBlock(a, "a1")
			for _, data := range []string{"c1", "c2", "c3", "c4"} {
				n.MineBlock(c, data)
			}

			if !n.TamperBlock(c, 2, "forged") {
				t.Fatalf("\t%s\tTest 3:\tShould be able to tamper with C.", failed)
			}

			res := n.RunConsensus()
			if res.WinnerID != a || len(res.InvalidPeers) != 1 || res.InvalidPeers[0] != c {
				t.Fatalf("\t%s\tTest 3:\tShould pick A and report C as invalid: got %+v", failed, res)
			}

			winner, _ := n.Peer(a)
			healed, _ := n.Peer(c)
			if !sameChain(healed.Chain, winner.Chain) {
				t.Fatalf("\t%s\tTest 3:\tShould replace the longer corrupted chain: got len[%d]", failed, len(healed.Chain))
			}
			t.Logf("\t%s\tTest 3:\tShould replace the longer corrupted chain with the winner.", success)
		}
	}
}
