// Package ledger provides the business access to the simulated network, its
// replicas and the pool of transactions waiting to be mined.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/ledgersim/foundation/blockchain/block"
	"github.com/ardanlabs/ledgersim/foundation/blockchain/chain"
	"github.com/ardanlabs/ledgersim/foundation/blockchain/mempool"
	"github.com/ardanlabs/ledgersim/foundation/blockchain/network"
	"github.com/ardanlabs/ledgersim/foundation/blockchain/peer"
)

// Set of error variables for ledger operations.
var (
	ErrPeerNotFound  = network.ErrPeerNotFound
	ErrBlockNotFound = chain.ErrBlockNotFound
	ErrFinalized     = chain.ErrFinalized
	ErrEmptyMempool  = errors.New("no pending transactions")
	ErrTxNotFound    = errors.New("transaction not found")
	ErrFeeTooLow     = errors.New("fee must be higher than the current fee")
)

// EventHandler defines a function that is called when events occur in the
// processing of the ledger.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining in the background.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining()
}

// nopWorker is used until a worker registers itself with the ledger.
type nopWorker struct{}

func (nopWorker) Shutdown()           {}
func (nopWorker) SignalStartMining()  {}
func (nopWorker) SignalCancelMining() {}

// =============================================================================

// Config represents the configuration required to construct the ledger.
type Config struct {
	Difficulty     uint
	Peers          []string
	SelectStrategy string
	MaxAttempts    uint64
	EvHandler      EventHandler
}

// Core manages the set of APIs for ledger access.
type Core struct {
	Worker Worker

	network     *network.Network
	mempool     *mempool.Mempool
	maxAttempts uint64
	evHandler   EventHandler
}

// New constructs a ledger with a fresh network holding the configured peers.
func New(cfg Config) (*Core, error) {
	ev := cfg.EvHandler
	if ev == nil {
		ev = func(string, ...any) {}
	}

	strategy := cfg.SelectStrategy
	if strategy == "" {
		strategy = mempool.StrategyFee
	}

	mp, err := mempool.NewWithStrategy(strategy)
	if err != nil {
		return nil, fmt.Errorf("mempool: %w", err)
	}

	net, err := network.New(cfg.Difficulty, network.WithEvHandler(network.EventHandler(ev)))
	if err != nil {
		return nil, fmt.Errorf("network: %w", err)
	}

	for _, name := range cfg.Peers {
		if _, err := net.AddPeer(name); err != nil {
			return nil, fmt.Errorf("add peer %s: %w", name, err)
		}
	}

	c := Core{
		Worker:      nopWorker{},
		network:     net,
		mempool:     mp,
		maxAttempts: cfg.MaxAttempts,
		evHandler:   ev,
	}

	return &c, nil
}

// Shutdown stops the background mining worker.
func (c *Core) Shutdown() {
	c.evHandler("ledger: shutdown: started")
	defer c.evHandler("ledger: shutdown: completed")

	c.Worker.Shutdown()
}

// PendingCount returns the number of transactions in the mempool.
func (c *Core) PendingCount() int {
	return c.mempool.Count()
}

// Difficulty returns the difficulty of the network.
func (c *Core) Difficulty() uint {
	return c.network.Difficulty()
}

// =============================================================================

// AddPeer adds a peer holding only the genesis block.
func (c *Core) AddPeer(name string) (peer.Status, error) {
	id, err := c.network.AddPeer(name)
	if err != nil {
		return peer.Status{}, err
	}

	return c.Status(id)
}

// RemovePeer removes the peer from the network.
func (c *Core) RemovePeer(id string) error {
	if _, exists := c.network.Peer(id); !exists {
		return ErrPeerNotFound
	}

	c.network.RemovePeer(id)
	return nil
}

// Statuses returns the signed status of every peer.
func (c *Core) Statuses() []peer.Status {
	return c.network.Statuses()
}

// Status returns the signed status of the specified peer.
func (c *Core) Status(id string) (peer.Status, error) {
	for _, st := range c.network.Statuses() {
		if st.ID == id {
			return st, nil
		}
	}

	return peer.Status{}, ErrPeerNotFound
}

// Peers returns every peer and its replica.
func (c *Core) Peers() []network.Info {
	return c.network.Peers()
}

// Chain returns the blocks held by the specified peer along with their
// confirmations.
func (c *Core) Chain(id string) ([]BlockInfo, error) {
	ch, exists := c.network.Chain(id)
	if !exists {
		return nil, ErrPeerNotFound
	}

	blocks := ch.Blocks()
	difficulty := ch.Difficulty()

	infos := make([]BlockInfo, len(blocks))
	for i, b := range blocks {
		infos[i] = BlockInfo{
			Block:         b,
			Confirmations: block.Confirmations(i, len(blocks)),
			Finalized:     block.IsFinalized(i, len(blocks)),
			Intact:        b.IsIntact(),
			Solved:        b.IsSolved(difficulty),
		}
	}

	return infos, nil
}

// =============================================================================

// MineAndBroadcast has the peer mine a block holding the data and broadcast
// it to every other peer.
func (c *Core) MineAndBroadcast(ctx context.Context, peerID string, data string) (block.Block, error) {
	return c.network.MineAndBroadcastContext(ctx, peerID, data, c.mineOptions()...)
}

// MineLocal has the peer mine a block holding the data without telling the
// other peers. It is used to create forks.
func (c *Core) MineLocal(ctx context.Context, peerID string, data string) (block.Block, error) {
	return c.network.MineBlockContext(ctx, peerID, data, c.mineOptions()...)
}

// TamperBlock changes the data of the block at the position on the peer's
// replica without mining it.
func (c *Core) TamperBlock(peerID string, position int, data string) (block.Block, error) {
	ch, err := c.editable(peerID, position)
	if err != nil {
		return block.Block{}, err
	}

	if !c.network.TamperBlock(peerID, position, data) {
		return block.Block{}, ErrFinalized
	}

	return ch.Blocks()[position], nil
}

// SetPreviousHash changes the previous hash of the block at the position on
// the peer's replica without mining it.
func (c *Core) SetPreviousHash(peerID string, position int, prevHash string) (block.Block, error) {
	ch, err := c.editable(peerID, position)
	if err != nil {
		return block.Block{}, err
	}

	if !ch.SetBlockPreviousHash(position, prevHash) {
		return block.Block{}, ErrFinalized
	}

	return ch.Blocks()[position], nil
}

// RemineBlock mines the block at the position on the peer's replica again.
func (c *Core) RemineBlock(ctx context.Context, peerID string, position int) (block.Block, error) {
	ch, exists := c.network.Chain(peerID)
	if !exists {
		return block.Block{}, ErrPeerNotFound
	}

	return ch.MineBlockContext(ctx, position, c.mineOptions()...)
}

// RunConsensus resolves every replica to the longest valid chain. Any
// background mining is cancelled since the replicas are about to change.
func (c *Core) RunConsensus() network.ConsensusResult {
	c.Worker.SignalCancelMining()
	return c.network.RunConsensus()
}

// =============================================================================

// SubmitTx adds a transaction to the mempool. It returns the transaction as
// stored and its position in the mining order.
func (c *Core) SubmitTx(tx mempool.Tx) (mempool.Tx, int) {
	c.mempool.Upsert(tx)

	stored, _ := c.mempool.Get(tx.ID)
	c.evHandler("ledger: SubmitTx: id[%s]: fee[%d]: pending[%d]", stored.ID, stored.Fee, c.mempool.Count())

	c.Worker.SignalStartMining()

	return stored, c.mempool.Position(tx.ID)
}

// BumpFee raises the fee paid by a pending transaction.
func (c *Core) BumpFee(id string, fee uint64) (mempool.Tx, error) {
	if _, exists := c.mempool.Get(id); !exists {
		return mempool.Tx{}, ErrTxNotFound
	}

	if !c.mempool.ReplaceFee(id, fee) {
		return mempool.Tx{}, fmt.Errorf("fee[%d]: %w", fee, ErrFeeTooLow)
	}

	tx, _ := c.mempool.Get(id)
	return tx, nil
}

// CancelTx replaces a pending transaction with a zero value transfer back to
// the sender paying a higher fee.
func (c *Core) CancelTx(id string, fee uint64) (mempool.Tx, error) {
	if _, exists := c.mempool.Get(id); !exists {
		return mempool.Tx{}, ErrTxNotFound
	}

	if !c.mempool.Cancel(id, fee) {
		return mempool.Tx{}, fmt.Errorf("fee[%d]: %w", fee, ErrFeeTooLow)
	}

	tx, _ := c.mempool.Get(id)
	return tx, nil
}

// Mempool returns the pending transactions in mining order.
func (c *Core) Mempool() []mempool.Tx {
	return c.mempool.Pending()
}

// MinePending drops stale transactions, picks the best pending transactions
// and has the peer mine them into a block that is broadcast to every other
// peer. The mined transactions are removed from the mempool.
func (c *Core) MinePending(ctx context.Context, peerID string) (Batch, block.Block, error) {
	if _, exists := c.network.Chain(peerID); !exists {
		return Batch{}, block.Block{}, ErrPeerNotFound
	}

	for _, tx := range c.mempool.Prune(time.Now()) {
		c.evHandler("ledger: MinePending: DROPPED: id[%s]: fee[%d]", tx.ID, tx.Fee)
	}

	txs := c.mempool.PickBest(mempool.BlockSize)
	if len(txs) == 0 {
		return Batch{}, block.Block{}, ErrEmptyMempool
	}

	batch, err := NewBatch(txs)
	if err != nil {
		return Batch{}, block.Block{}, err
	}

	data, err := batch.Encode()
	if err != nil {
		return Batch{}, block.Block{}, err
	}

	b, err := c.network.MineAndBroadcastContext(ctx, peerID, data, c.mineOptions()...)
	if err != nil {
		return Batch{}, block.Block{}, err
	}

	c.mempool.Delete(txIDs(txs)...)

	c.evHandler("ledger: MinePending: blk[%d]: txs[%d]: merkle[%s]", b.Index, len(txs), batch.MerkleRoot)

	return batch, b, nil
}

// ProveTx builds a merkle proof that the transaction is part of the block at
// the position on the peer's replica.
func (c *Core) ProveTx(peerID string, position int, txID string) (TxProof, error) {
	ch, exists := c.network.Chain(peerID)
	if !exists {
		return TxProof{}, ErrPeerNotFound
	}

	blocks := ch.Blocks()
	if position < 0 || position >= len(blocks) {
		return TxProof{}, ErrBlockNotFound
	}

	batch, err := DecodeBatch(blocks[position].Data)
	if err != nil {
		return TxProof{}, err
	}

	return batch.Prove(txID)
}

// =============================================================================

// editable returns the chain of the peer if the position can be changed.
func (c *Core) editable(peerID string, position int) (*chain.Chain, error) {
	ch, exists := c.network.Chain(peerID)
	if !exists {
		return nil, ErrPeerNotFound
	}

	if position < 0 || position >= ch.Len() {
		return nil, ErrBlockNotFound
	}

	if ch.IsFinalized(position) {
		return nil, ErrFinalized
	}

	return ch, nil
}

func (c *Core) mineOptions() []block.MineOption {
	if c.maxAttempts == 0 {
		return nil
	}

	return []block.MineOption{block.WithMaxAttempts(c.maxAttempts)}
}
