package merkle_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ardanlabs/ledgersim/foundation/blockchain/hash"
	"github.com/ardanlabs/ledgersim/foundation/blockchain/merkle"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_Root(t *testing.T) {
	sha := hash.SHA256
	a, b, c := sha("a"), sha("b"), sha("c")

	type table struct {
		name   string
		values []string
		root   string
	}

	tt := []table{
		{name: "single", values: []string{"a"}, root: a},
		{name: "pair", values: []string{"a", "b"}, root: sha(a + b)},
		{name: "odd", values: []string{"a", "b", "c"}, root: sha(sha(a+b) + sha(c+c))},
	}

	t.Log("Given the need to commit to a list of values.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen building a %s tree.", testID, tst.name)
				{
					tree, err := merkle.NewTree(tst.values)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to build the tree: %s", failed, testID, err)
					}

					if tree.RootHash() != tst.root {
						t.Logf("\t\tTest %d:\tgot: %s", testID, tree.RootHash())
						t.Logf("\t\tTest %d:\texp: %s", testID, tst.root)
						t.Fatalf("\t%s\tTest %d:\tShould get the expected root.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get the expected root.", success, testID)

					if err := tree.Verify(); err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould verify the tree: %s", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould verify the tree.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_Proof(t *testing.T) {
	t.Log("Given the need to prove a value belongs to the tree.")
	{
		for _, size := range []int{1, 2, 3, 5, 8} {
			values := make([]string, size)
			for i := range values {
				values[i] = fmt.Sprintf("tx%d", i)
			}

			tree, err := merkle.NewTree(values)
			if err != nil {
				t.Fatalf("\t%s\tShould be able to build a tree of %d: %s", failed, size, err)
			}

			for i := range values {
				proof, err := tree.Proof(i)
				if err != nil {
					t.Fatalf("\t%s\tShould get a proof for leaf %d of %d: %s", failed, i, size, err)
				}

				leaf, _ := tree.LeafHash(i)
				if !merkle.VerifyProof(proof, leaf, tree.RootHash(), nil) {
					t.Fatalf("\t%s\tShould verify the proof for leaf %d of %d.", failed, i, size)
				}

				if merkle.VerifyProof(proof, hash.SHA256("forged"), tree.RootHash(), nil) {
					t.Fatalf("\t%s\tShould not verify a forged leaf %d of %d.", failed, i, size)
				}
			}
			t.Logf("\t%s\tShould verify every leaf of a tree of %d.", success, size)
		}

		tree, _ := merkle.NewTree([]string{"a", "b", "c"})

		proof, _ := tree.Proof(2)
		if len(proof) != 2 || proof[0].Direction != merkle.Right || proof[0].Hash != hash.SHA256("c") {
			t.Fatalf("\t%s\tShould pair an odd leaf with itself: got %+v", failed, proof)
		}
		t.Logf("\t%s\tShould pair an odd leaf with itself.", success)

		if _, err := tree.Proof(3); !errors.Is(err, merkle.ErrOutOfBounds) {
			t.Fatalf("\t%s\tShould get ErrOutOfBounds: got %v", failed, err)
		}
		t.Logf("\t%s\tShould get ErrOutOfBounds for a bad index.", success)
	}
}

func Test_Strategy(t *testing.T) {
	values := []string{"a", "b", "c", "d"}

	tree, err := merkle.NewTree(values, merkle.WithHashStrategy(hash.Keccak256))
	if err != nil {
		t.Fatalf("Should be able to build a keccak tree: %s", err)
	}

	shaTree, _ := merkle.NewTree(values)
	if tree.RootHash() == shaTree.RootHash() {
		t.Fatalf("Should get a different root for a different strategy.")
	}

	proof, _ := tree.Proof(1)
	leaf, _ := tree.LeafHash(1)
	if !merkle.VerifyProof(proof, leaf, tree.RootHash(), hash.Keccak256) {
		t.Fatalf("Should verify with the tree's strategy.")
	}

	if merkle.VerifyProof(proof, leaf, tree.RootHash(), nil) {
		t.Fatalf("Should not verify with a different strategy.")
	}

	got := tree.Values()
	for i := range values {
		if got[i] != values[i] {
			t.Fatalf("Should get back the values in order.")
		}
	}

	if _, err := merkle.NewTree(nil); !errors.Is(err, merkle.ErrNoValues) {
		t.Fatalf("Should get ErrNoValues for an empty tree: got %v", err)
	}
}
