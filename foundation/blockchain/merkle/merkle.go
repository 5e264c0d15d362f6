// Package merkle provides an implementation of a merkle tree over string
// values so a block can commit to the transactions it carries and a single
// transaction can be proven to belong to that commitment.
package merkle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ardanlabs/ledgersim/foundation/blockchain/hash"
)

// Set of error variables for tree construction and proofs.
var (
	ErrNoValues      = errors.New("cannot construct tree with no values")
	ErrOutOfBounds   = errors.New("leaf index out of bounds")
	ErrTreeMalformed = errors.New("tree structure mismatch")
)

// Set of directions a proof step can take.
const (
	Left  = "left"
	Right = "right"
)

// ProofStep is a sibling hash and the side it sits on when it is combined
// with the running hash.
type ProofStep struct {
	Hash      string `json:"hash"`
	Direction string `json:"direction"`
}

// =============================================================================

// Tree represents a merkle tree. Leaves are the digest of each value and
// every parent is the digest of its children's hex hashes concatenated.
// A level with an odd number of nodes pairs the last node with itself.
type Tree struct {
	Root         *Node
	Leafs        []*Node
	hashStrategy hash.Func
}

// WithHashStrategy is used to change the default hash strategy of using sha256
// when constructing a new tree.
func WithHashStrategy(fn hash.Func) func(t *Tree) {
	return func(t *Tree) {
		if fn != nil {
			t.hashStrategy = fn
		}
	}
}

// NewTree constructs a new merkle tree from the specified values.
func NewTree(values []string, options ...func(t *Tree)) (*Tree, error) {
	t := Tree{
		hashStrategy: hash.SHA256,
	}

	for _, option := range options {
		option(&t)
	}

	if err := t.Generate(values); err != nil {
		return nil, err
	}

	return &t, nil
}

// Generate constructs the leafs and nodes of the tree from the specified
// values. If the tree has been generated previously, the tree is re-generated
// from scratch.
func (t *Tree) Generate(values []string) error {
	if len(values) == 0 {
		return ErrNoValues
	}

	leafs := make([]*Node, len(values))
	for i, value := range values {
		leafs[i] = &Node{
			Hash:  t.hashStrategy(value),
			Value: value,
			leaf:  true,
		}
	}

	level := leafs
	for len(level) > 1 {
		next := make([]*Node, 0, (len(level)+1)/2)

		for i := 0; i < len(level); i += 2 {
			left, right := level[i], level[i]
			if i+1 < len(level) {
				right = level[i+1]
			}

			n := Node{
				Left:  left,
				Right: right,
				Hash:  t.hashStrategy(left.Hash + right.Hash),
			}
			left.Parent = &n
			right.Parent = &n

			next = append(next, &n)
		}

		level = next
	}

	t.Root = level[0]
	t.Leafs = leafs

	return nil
}

// RootHash returns the hex hash at the root of the tree.
func (t *Tree) RootHash() string {
	return t.Root.Hash
}

// LeafHash returns the hex hash of the leaf at the specified index.
func (t *Tree) LeafHash(index int) (string, error) {
	if index < 0 || index >= len(t.Leafs) {
		return "", ErrOutOfBounds
	}

	return t.Leafs[index].Hash, nil
}

// Values returns the values stored in the tree in leaf order.
func (t *Tree) Values() []string {
	values := make([]string, len(t.Leafs))
	for i, l := range t.Leafs {
		values[i] = l.Value
	}

	return values
}

// Proof returns the sibling hashes from the leaf at the specified index up to
// the root. Folding them into the leaf hash with VerifyProof reproduces the
// root.
func (t *Tree) Proof(index int) ([]ProofStep, error) {
	if index < 0 || index >= len(t.Leafs) {
		return nil, ErrOutOfBounds
	}

	var proof []ProofStep

	node := t.Leafs[index]
	for parent := node.Parent; parent != nil; parent = parent.Parent {
		switch node {
		case parent.Left:
			proof = append(proof, ProofStep{Hash: parent.Right.Hash, Direction: Right})
		case parent.Right:
			proof = append(proof, ProofStep{Hash: parent.Left.Hash, Direction: Left})
		default:
			return nil, ErrTreeMalformed
		}

		node = parent
	}

	return proof, nil
}

// Verify recalculates every hash in the tree and checks it against the
// stored root.
func (t *Tree) Verify() error {
	calculated := t.Root.verify(t.hashStrategy)
	if calculated != t.Root.Hash {
		return fmt.Errorf("root hash invalid: got %s, stored %s", calculated, t.Root.Hash)
	}

	return nil
}

// String returns a string representation of the tree. Only leaf nodes are
// included in the output.
func (t *Tree) String() string {
	var b strings.Builder

	for _, l := range t.Leafs {
		b.WriteString(l.String())
		b.WriteString("\n")
	}

	return b.String()
}

// =============================================================================

// VerifyProof folds the proof into the leaf hash and reports whether the
// result matches the root. A nil hash function means sha256.
func VerifyProof(proof []ProofStep, leafHash string, root string, fn hash.Func) bool {
	if fn == nil {
		fn = hash.SHA256
	}

	current := leafHash
	for _, step := range proof {
		switch step.Direction {
		case Left:
			current = fn(step.Hash + current)
		default:
			current = fn(current + step.Hash)
		}
	}

	return current == root
}

// =============================================================================

// Node represents a node, root, or leaf in the tree.
type Node struct {
	Parent *Node
	Left   *Node
	Right  *Node
	Hash   string
	Value  string
	leaf   bool
}

// verify walks down the tree until hitting a leaf, calculating the hash at
// each level and returning the resulting hash of the node.
func (n *Node) verify(fn hash.Func) string {
	if n.leaf {
		return fn(n.Value)
	}

	return fn(n.Left.verify(fn) + n.Right.verify(fn))
}

// String returns a string representation of the node.
func (n *Node) String() string {
	return fmt.Sprintf("%t %s %s", n.leaf, n.Hash, n.Value)
}
