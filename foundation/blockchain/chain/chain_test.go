package chain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ardanlabs/ledgersim/foundation/blockchain/block"
	"github.com/ardanlabs/ledgersim/foundation/blockchain/chain"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

const difficulty = 2

func newChain(t *testing.T, blocks int) *chain.Chain {
	t.Helper()

	c, err := chain.New(difficulty, nil)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a chain: %s", failed, err)
	}

	for i := 0; i < blocks; i++ {
		c.AddBlock("tx")
	}

	return c
}

func Test_New(t *testing.T) {
	t.Log("Given the need to construct a chain.")
	{
		t.Logf("\tTest 0:\tWhen no genesis block is provided.")
		{
			c := newChain(t, 0)

			if c.Len() != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould have a single block: got %d", failed, c.Len())
			}
			t.Logf("\t%s\tTest 0:\tShould have a single block.", success)

			gen := c.LatestBlock()
			if gen.Index != 0 || gen.Data != block.GenesisData || gen.PrevHash != block.GenesisPrevHash {
				t.Fatalf("\t%s\tTest 0:\tShould have the genesis fields: got %+v", failed, gen)
			}
			t.Logf("\t%s\tTest 0:\tShould have the genesis fields.", success)

			if !c.IsValid() {
				t.Fatalf("\t%s\tTest 0:\tShould be valid.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould be valid.", success)
		}

		t.Logf("\tTest 1:\tWhen a shared genesis block is provided.")
		{
			gen, err := block.Genesis(difficulty)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to mine genesis: %s", failed, err)
			}

			c1, _ := chain.New(difficulty, &gen)
			c2, _ := chain.New(difficulty, &gen)

			if c1.LatestBlock() != c2.LatestBlock() {
				t.Fatalf("\t%s\tTest 1:\tShould have identical genesis blocks.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould have identical genesis blocks.", success)
		}

		t.Logf("\tTest 2:\tWhen the difficulty is too large.")
		{
			if _, err := chain.New(65, nil); !errors.Is(err, block.ErrDifficulty) {
				t.Fatalf("\t%s\tTest 2:\tShould get ErrDifficulty: got %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould get ErrDifficulty.", success)
		}
	}
}

func Test_AddBlock(t *testing.T) {
	t.Log("Given the need to append mined blocks.")
	{
		t.Logf("\tTest 0:\tWhen adding three blocks.")
		{
			c := newChain(t, 3)

			if c.Len() != 4 {
				t.Fatalf("\t%s\tTest 0:\tShould have four blocks: got %d", failed, c.Len())
			}
			t.Logf("\t%s\tTest 0:\tShould have four blocks.", success)

			blocks := c.Blocks()
			for i := 1; i < len(blocks); i++ {
				if blocks[i].Index != uint64(i) || blocks[i].PrevHash != blocks[i-1].Hash {
					t.Fatalf("\t%s\tTest 0:\tShould link block %d to its predecessor.", failed, i)
				}
				if !blocks[i].IsSolved(difficulty) {
					t.Fatalf("\t%s\tTest 0:\tShould have a solved hash for block %d.", failed, i)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould have linked and solved blocks.", success)

			if !c.IsValid() {
				t.Fatalf("\t%s\tTest 0:\tShould be valid.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould be valid.", success)
		}

		t.Logf("\tTest 1:\tWhen mining is cancelled.")
		{
			c := newChain(t, 0)
			if err := c.SetDifficulty(64); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to set the difficulty: %s", failed, err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			if _, err := c.AddBlockContext(ctx, "tx"); !errors.Is(err, context.Canceled) {
				t.Fatalf("\t%s\tTest 1:\tShould get context.Canceled: got %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould get context.Canceled.", success)

			if c.Len() != 1 {
				t.Fatalf("\t%s\tTest 1:\tShould not append a block.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould not append a block.", success)
		}
	}
}

func Test_Tamper(t *testing.T) {
	t.Log("Given the need to detect and repair tampering.")
	{
		t.Logf("\tTest 0:\tWhen editing block 1 of a four block chain.")
		{
			c := newChain(t, 3)

			if !c.EditBlockData(1, "forged") {
				t.Fatalf("\t%s\tTest 0:\tShould be able to edit the block.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to edit the block.", success)

			if c.IsValid() {
				t.Fatalf("\t%s\tTest 0:\tShould be invalid after the edit.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould be invalid after the edit.", success)

			b1, ok := c.MineBlock(1)
			if !ok {
				t.Fatalf("\t%s\tTest 0:\tShould be able to re-mine the block.", failed)
			}

			if c.IsValid() {
				t.Fatalf("\t%s\tTest 0:\tShould still be invalid with only the edited block re-mined.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould still be invalid with only the edited block re-mined.", success)

			if !c.SetBlockPreviousHash(2, b1.Hash) {
				t.Fatalf("\t%s\tTest 0:\tShould be able to relink block 2.", failed)
			}
			b2, _ := c.MineBlock(2)
			c.SetBlockPreviousHash(3, b2.Hash)
			c.MineBlock(3)

			if !c.IsValid() {
				t.Fatalf("\t%s\tTest 0:\tShould be valid after relinking and re-mining every following block.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould be valid after relinking and re-mining every following block.", success)
		}

		t.Logf("\tTest 1:\tWhen using unknown positions.")
		{
			c := newChain(t, 1)

			if c.EditBlockData(5, "x") || c.SetBlockPreviousHash(-1, "x") {
				t.Fatalf("\t%s\tTest 1:\tShould ignore unknown positions.", failed)
			}
			if _, ok := c.MineBlock(9); ok {
				t.Fatalf("\t%s\tTest 1:\tShould not mine unknown positions.", failed)
			}
			if _, err := c.MineBlockContext(context.Background(), 9); !errors.Is(err, chain.ErrBlockNotFound) {
				t.Fatalf("\t%s\tTest 1:\tShould get ErrBlockNotFound: got %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould ignore unknown positions.", success)
		}
	}
}

func Test_Finalization(t *testing.T) {
	t.Log("Given the need to protect blocks with enough confirmations.")
	{
		t.Logf("\tTest 0:\tWhen the chain has eight blocks.")
		{
			c := newChain(t, 7)
			before := c.Blocks()

			if c.Confirmations(1) != 6 || !c.IsFinalized(1) {
				t.Fatalf("\t%s\tTest 0:\tShould report block 1 as finalized: confirmations %d", failed, c.Confirmations(1))
			}
			t.Logf("\t%s\tTest 0:\tShould report block 1 as finalized.", success)

			if c.IsFinalized(2) {
				t.Fatalf("\t%s\tTest 0:\tShould not report block 2 as finalized.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould not report block 2 as finalized.", success)

			if c.EditBlockData(1, "forged") || c.SetBlockPreviousHash(1, "abc") {
				t.Fatalf("\t%s\tTest 0:\tShould refuse to edit a finalized block.", failed)
			}
			if _, err := c.MineBlockContext(context.Background(), 0); !errors.Is(err, chain.ErrFinalized) {
				t.Fatalf("\t%s\tTest 0:\tShould get ErrFinalized: got %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould refuse to modify finalized blocks.", success)

			after := c.Blocks()
			for i := range before {
				if before[i] != after[i] {
					t.Fatalf("\t%s\tTest 0:\tShould leave block %d unchanged.", failed, i)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould leave the chain unchanged.", success)

			if !c.EditBlockData(2, "allowed") {
				t.Fatalf("\t%s\tTest 0:\tShould be able to edit block 2.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to edit block 2.", success)
		}
	}
}

func Test_ReplaceChain(t *testing.T) {
	t.Log("Given the need to adopt a better chain.")
	{
		gen, err := block.Genesis(difficulty)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine genesis: %s", failed, err)
		}

		build := func(n int) *chain.Chain {
			c, _ := chain.New(difficulty, &gen)
			for i := 0; i < n; i++ {
				c.AddBlock("tx")
			}
			return c
		}

		t.Logf("\tTest 0:\tWhen the candidate is longer and valid.")
		{
			c := build(1)
			long := build(3)

			if !c.ReplaceChain(long.Blocks()) {
				t.Fatalf("\t%s\tTest 0:\tShould replace the chain.", failed)
			}
			if c.Len() != 4 || c.LatestBlock() != long.LatestBlock() {
				t.Fatalf("\t%s\tTest 0:\tShould hold the candidate blocks.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould replace the chain.", success)
		}

		t.Logf("\tTest 1:\tWhen the candidate is shorter or equal.")
		{
			c := build(3)

			if c.ReplaceChain(build(1).Blocks()) {
				t.Fatalf("\t%s\tTest 1:\tShould reject a shorter candidate.", failed)
			}
			if c.ReplaceChain(build(3).Blocks()) {
				t.Fatalf("\t%s\tTest 1:\tShould reject an equal candidate while valid.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould reject shorter and equal candidates.", success)
		}

		t.Logf("\tTest 2:\tWhen the candidate is longer but invalid.")
		{
			c := build(1)
			bad := build(3)
			bad.EditBlockData(2, "forged")

			if c.ReplaceChain(bad.Blocks()) {
				t.Fatalf("\t%s\tTest 2:\tShould reject an invalid candidate.", failed)
			}
			if c.ReplaceChain(nil) {
				t.Fatalf("\t%s\tTest 2:\tShould reject an empty candidate.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould reject invalid candidates.", success)
		}

		t.Logf("\tTest 3:\tWhen the current chain is invalid.")
		{
			c := build(2)
			c.EditBlockData(1, "forged")

			if !c.ReplaceChain(build(2).Blocks()) {
				t.Fatalf("\t%s\tTest 3:\tShould accept an equal length valid candidate.", failed)
			}
			if !c.IsValid() {
				t.Fatalf("\t%s\tTest 3:\tShould be valid after replacement.", failed)
			}
			t.Logf("\t%s\tTest 3:\tShould accept an equal length valid candidate.", success)
		}

		t.Logf("\tTest 4:\tWhen the caller mutates the candidate after replacement.")
		{
			c := build(0)
			candidate := build(2).Blocks()
			c.ReplaceChain(candidate)
			candidate[1].Data = "changed"

			if !c.IsValid() {
				t.Fatalf("\t%s\tTest 4:\tShould hold its own copy of the blocks.", failed)
			}
			t.Logf("\t%s\tTest 4:\tShould hold its own copy of the blocks.", success)
		}

		t.Logf("\tTest 5:\tWhen the current chain is invalid and longer than the candidate.")
		{
			c := build(4)
			c.EditBlockData(2, "forged")

			if !c.ReplaceChain(build(1).Blocks()) {
				t.Fatalf("\t%s\tTest 5:\tShould accept a shorter valid candidate.", failed)
			}
			if c.Len() != 2 || !c.IsValid() {
				t.Fatalf("\t%s\tTest 5:\tShould hold the candidate blocks: len[%d]", failed, c.Len())
			}
			t.Logf("\t%s\tTest 5:\tShould accept a shorter valid candidate.", success)
		}
	}
}

func Test_ReceiveBlock(t *testing.T) {
	t.Log("Given the need to accept blocks mined by other replicas.")
	{
		gen, _ := block.Genesis(difficulty)
		miner, _ := chain.New(difficulty, &gen)
		receiver, _ := chain.New(difficulty, &gen)

		t.Logf("\tTest 0:\tWhen the block extends the tip.")
		{
			b := miner.AddBlock("tx")

			if !receiver.ReceiveBlock(b) {
				t.Fatalf("\t%s\tTest 0:\tShould accept the block.", failed)
			}
			if receiver.LatestBlock() != b {
				t.Fatalf("\t%s\tTest 0:\tShould have the block as the tip.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould accept the block.", success)
		}

		t.Logf("\tTest 1:\tWhen the block is a duplicate, tampered or unsolved.")
		{
			b := miner.LatestBlock()
			if receiver.ReceiveBlock(b) {
				t.Fatalf("\t%s\tTest 1:\tShould reject a duplicate block.", failed)
			}

			next := miner.AddBlock("tx")
			forged := next
			forged.Data = "forged"
			if receiver.ReceiveBlock(forged) {
				t.Fatalf("\t%s\tTest 1:\tShould reject a block with a stale hash.", failed)
			}

			unsolved := block.New(next.Index, "tx", next.PrevHash)
			for unsolved.IsSolved(difficulty) {
				unsolved.Nonce++
				unsolved.Hash = unsolved.CalculateHash()
			}
			if receiver.ReceiveBlock(unsolved) {
				t.Fatalf("\t%s\tTest 1:\tShould reject an unsolved block.", failed)
			}

			if receiver.Len() != 2 {
				t.Fatalf("\t%s\tTest 1:\tShould leave the chain unchanged: got %d blocks", failed, receiver.Len())
			}
			t.Logf("\t%s\tTest 1:\tShould reject bad blocks.", success)
		}
	}
}
