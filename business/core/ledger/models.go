package ledger

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ardanlabs/ledgersim/foundation/blockchain/block"
	"github.com/ardanlabs/ledgersim/foundation/blockchain/mempool"
	"github.com/ardanlabs/ledgersim/foundation/blockchain/merkle"
)

// ErrNotBatch is returned when the data of a block doesn't hold a batch of
// transactions.
var ErrNotBatch = errors.New("block data is not a transaction batch")

// BlockInfo is a block as seen from a single replica.
type BlockInfo struct {
	block.Block
	Confirmations int  `json:"confirmations"`
	Finalized     bool `json:"finalized"`
	Intact        bool `json:"intact"`
	Solved        bool `json:"solved"`
}

// Batch is the set of transactions mined into a single block along with
// the merkle root that commits to them.
type Batch struct {
	MerkleRoot string       `json:"merkle_root"`
	Txs        []mempool.Tx `json:"txs"`
}

// NewBatch constructs a batch for the transactions in the order provided.
func NewBatch(txs []mempool.Tx) (Batch, error) {
	tree, err := merkle.NewTree(txIDs(txs))
	if err != nil {
		return Batch{}, err
	}

	batch := Batch{
		MerkleRoot: tree.RootHash(),
		Txs:        make([]mempool.Tx, len(txs)),
	}

	for i, tx := range txs {
		tx.Status = mempool.StatusConfirmed
		batch.Txs[i] = tx
	}

	return batch, nil
}

// DecodeBatch parses the data of a block as a batch.
func DecodeBatch(data string) (Batch, error) {
	var batch Batch
	if err := json.Unmarshal([]byte(data), &batch); err != nil {
		return Batch{}, ErrNotBatch
	}

	if batch.MerkleRoot == "" || len(batch.Txs) == 0 {
		return Batch{}, ErrNotBatch
	}

	return batch, nil
}

// Encode returns the batch in the form stored as block data.
func (b Batch) Encode() (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("encode batch: %w", err)
	}

	return string(data), nil
}

// Prove builds the merkle proof for the specified transaction. The tree is
// rebuilt from the batch and must reproduce the stored root.
func (b Batch) Prove(txID string) (TxProof, error) {
	tree, err := merkle.NewTree(txIDs(b.Txs))
	if err != nil {
		return TxProof{}, err
	}

	if tree.RootHash() != b.MerkleRoot {
		return TxProof{}, fmt.Errorf("merkle root mismatch: got %s, stored %s", tree.RootHash(), b.MerkleRoot)
	}

	for i, tx := range b.Txs {
		if tx.ID != txID {
			continue
		}

		leaf, err := tree.LeafHash(i)
		if err != nil {
			return TxProof{}, err
		}

		proof, err := tree.Proof(i)
		if err != nil {
			return TxProof{}, err
		}

		tp := TxProof{
			TxID:       txID,
			LeafHash:   leaf,
			MerkleRoot: b.MerkleRoot,
			Proof:      proof,
			Verified:   merkle.VerifyProof(proof, leaf, b.MerkleRoot, nil),
		}

		return tp, nil
	}

	return TxProof{}, ErrTxNotFound
}

// TxProof proves a transaction belongs to the batch committed by the root.
type TxProof struct {
	TxID       string             `json:"tx_id"`
	LeafHash   string             `json:"leaf_hash"`
	MerkleRoot string             `json:"merkle_root"`
	Proof      []merkle.ProofStep `json:"proof"`
	Verified   bool               `json:"verified"`
}

func txIDs(txs []mempool.Tx) []string {
	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID
	}

	return ids
}
