package netgrp

import (
	"github.com/ardanlabs/ledgersim/foundation/blockchain/block"
	"github.com/ardanlabs/ledgersim/foundation/blockchain/merkle"
)

// NewPeer is what we require from clients when adding a peer.
type NewPeer struct {
	Name string `json:"name" validate:"required"`
}

// MineRequest is what we require from clients when mining a block. A local
// block is not broadcast to the other peers.
type MineRequest struct {
	Data  string `json:"data"`
	Local bool   `json:"local"`
}

// TamperRequest is the data to write into a block without mining it.
type TamperRequest struct {
	Data string `json:"data"`
}

// PrevHashRequest is the previous hash to write into a block without mining it.
type PrevHashRequest struct {
	PrevHash string `json:"previous_hash" validate:"required"`
}

// NewTx is what we require from clients when submitting a transaction.
type NewTx struct {
	ID     string `json:"id" validate:"omitempty,uuid4"`
	From   string `json:"from" validate:"required"`
	To     string `json:"to" validate:"required"`
	Amount uint64 `json:"amount"`
	Fee    uint64 `json:"fee" validate:"oneof=1 5 10"`
}

// FeeRequest is the new fee for a pending transaction.
type FeeRequest struct {
	Fee uint64 `json:"fee" validate:"required"`
}

// SubmittedTx reports where a submitted transaction sits in the mempool.
type SubmittedTx struct {
	ID              string `json:"id"`
	Fee             uint64 `json:"fee"`
	Position        int    `json:"position"`
	Pending         int    `json:"pending"`
	EstimatedBlocks int    `json:"estimated_blocks"`
}

// MinedBatch is the block mined from pending transactions.
type MinedBatch struct {
	Block      block.Block `json:"block"`
	MerkleRoot string      `json:"merkle_root"`
	Txs        int         `json:"txs"`
}

// ProofRequest asks for the merkle root of the values and the proof for the
// value at the index.
type ProofRequest struct {
	Values   []string `json:"values" validate:"required,min=1"`
	Index    int      `json:"index" validate:"gte=0"`
	Strategy string   `json:"strategy" validate:"omitempty,oneof=sha256 keccak256"`
}

// Proof is the merkle root of a set of values and the proof for one of them.
type Proof struct {
	Root     string             `json:"root"`
	LeafHash string             `json:"leaf_hash"`
	Proof    []merkle.ProofStep `json:"proof"`
	Verified bool               `json:"verified"`
}
