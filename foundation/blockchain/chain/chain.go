// Package chain maintains an ordered sequence of blocks and implements the
// mining, validation and replacement rules of a single ledger replica.
//
// Rejected input is reported with a boolean or is a no-op. Nothing in this
// package returns an error for a block or chain that fails validation.
package chain

import (
	"context"
	"errors"
	"sync"

	"github.com/ardanlabs/ledgersim/foundation/blockchain/block"
	"github.com/ardanlabs/ledgersim/foundation/blockchain/hash"
)

// Set of error variables for the context aware operations.
var (
	ErrBlockNotFound = errors.New("block not found")
	ErrFinalized     = errors.New("block is finalized")
)

// EventHandler defines a function that is called when events occur in the
// processing of the chain.
type EventHandler func(v string, args ...any)

// Chain represents a single replica of the ledger.
type Chain struct {
	mu         sync.RWMutex
	blocks     []block.Block
	difficulty uint
	evHandler  EventHandler
}

// WithEvHandler provides a handler that receives events about the chain.
func WithEvHandler(ev EventHandler) func(c *Chain) {
	return func(c *Chain) {
		if ev != nil {
			c.evHandler = ev
		}
	}
}

// New constructs a chain at the specified difficulty. If a genesis block is
// provided it is copied, which keeps multiple replicas identical at birth.
// Otherwise a fresh genesis block is constructed and mined.
func New(difficulty uint, genesis *block.Block, options ...func(c *Chain)) (*Chain, error) {
	if difficulty > hash.Size {
		return nil, block.ErrDifficulty
	}

	c := Chain{
		difficulty: difficulty,
		evHandler:  func(string, ...any) {},
	}
	for _, option := range options {
		option(&c)
	}

	switch genesis {
	case nil:
		gen := block.New(0, block.GenesisData, block.GenesisPrevHash)
		if err := gen.Mine(context.Background(), difficulty, block.WithEvHandler(block.EventHandler(c.evHandler))); err != nil {
			return nil, err
		}
		c.blocks = []block.Block{gen}

	default:
		c.blocks = []block.Block{*genesis}
	}

	return &c, nil
}

// =============================================================================

// Difficulty returns the number of leading zeros required by this chain.
func (c *Chain) Difficulty() uint {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.difficulty
}

// SetDifficulty changes the difficulty used for mining and validation from
// this point on.
func (c *Chain) SetDifficulty(difficulty uint) error {
	if difficulty > hash.Size {
		return block.ErrDifficulty
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.difficulty = difficulty
	return nil
}

// Blocks returns a copy of the blocks in the chain.
func (c *Chain) Blocks() []block.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return copyBlocks(c.blocks)
}

// Len returns the number of blocks in the chain.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.blocks)
}

// LatestBlock returns the tip of the chain.
func (c *Chain) LatestBlock() block.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.blocks[len(c.blocks)-1]
}

// Block returns the first block carrying the specified index.
func (c *Chain) Block(index uint64) (block.Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, b := range c.blocks {
		if b.Index == index {
			return b, true
		}
	}

	return block.Block{}, false
}

// Confirmations returns the number of blocks that follow the block at the
// specified position.
func (c *Chain) Confirmations(position int) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return block.Confirmations(position, len(c.blocks))
}

// IsFinalized reports whether the block at the specified position can no
// longer be edited or re-mined.
func (c *Chain) IsFinalized(position int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return block.IsFinalized(position, len(c.blocks))
}

// =============================================================================

// AddBlock constructs a block linked to the tip, mines it and appends it.
// Mining is unbounded.
func (c *Chain) AddBlock(data string) block.Block {

	// A background context and no attempts budget can only fail on
	// difficulty, which New and SetDifficulty already guard.
	b, _ := c.AddBlockContext(context.Background(), data)
	return b
}

// AddBlockContext constructs a block linked to the tip, mines it and appends
// it. The mining operation can be cancelled or bounded with options. Nothing
// is appended on error.
func (c *Chain) AddBlockContext(ctx context.Context, data string, options ...block.MineOption) (block.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tip := c.blocks[len(c.blocks)-1]
	nb := block.New(tip.Index+1, data, tip.Hash)

	opts := append([]block.MineOption{block.WithEvHandler(block.EventHandler(c.evHandler))}, options...)
	if err := nb.Mine(ctx, c.difficulty, opts...); err != nil {
		return block.Block{}, err
	}

	c.blocks = append(c.blocks, nb)
	c.evHandler("chain: AddBlock: blk[%d]: hash[%s]", nb.Index, nb.Hash)

	return nb, nil
}

// ReceiveBlock appends a block mined somewhere else if it links to the tip,
// carries the next index, has an intact hash and satisfies proof of work.
// Otherwise the block is rejected and the chain is left untouched.
func (c *Chain) ReceiveBlock(b block.Block) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	tip := c.blocks[len(c.blocks)-1]
	if err := b.ValidateNext(tip, c.difficulty); err != nil {
		c.evHandler("chain: ReceiveBlock: REJECTED: blk[%d]: %s", b.Index, err)
		return false
	}

	c.blocks = append(c.blocks, b)
	c.evHandler("chain: ReceiveBlock: ACCEPTED: blk[%d]: hash[%s]", b.Index, b.Hash)

	return true
}

// =============================================================================

// IsValid checks every block in the chain against the genesis, linkage,
// integrity and proof of work rules.
func (c *Chain) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.validate(c.blocks)
}

// IsValidChain applies the same checks as IsValid to a sequence of blocks
// that doesn't belong to this chain.
func (c *Chain) IsValidChain(blocks []block.Block) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.validate(blocks)
}

// ReplaceChain adopts a copy of the candidate if it is valid and either longer
// than the current chain or the current chain is invalid. A valid chain is
// never displaced by a candidate that isn't longer.
func (c *Chain) ReplaceChain(candidate []block.Block) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(candidate) <= len(c.blocks) && c.validate(c.blocks) {
		c.evHandler("chain: ReplaceChain: REJECTED: not longer: got[%d]: have[%d]", len(candidate), len(c.blocks))
		return false
	}

	if !c.validate(candidate) {
		c.evHandler("chain: ReplaceChain: REJECTED: invalid candidate: len[%d]", len(candidate))
		return false
	}

	c.blocks = copyBlocks(candidate)
	c.evHandler("chain: ReplaceChain: REPLACED: len[%d]: tip[%s]", len(c.blocks), c.blocks[len(c.blocks)-1].Hash)

	return true
}

// =============================================================================

// EditBlockData changes the data of the block at the specified position
// without mining it. This is a no-op for unknown positions and finalized
// blocks. It reports whether the block was changed.
func (c *Chain) EditBlockData(position int, data string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.editable(position) {
		return false
	}

	c.blocks[position].SetData(data)
	c.evHandler("chain: EditBlockData: blk[%d]: hash[%s]", position, c.blocks[position].Hash)

	return true
}

// SetBlockPreviousHash changes the previous hash of the block at the
// specified position without mining it. This is a no-op for unknown
// positions and finalized blocks. It reports whether the block was changed.
func (c *Chain) SetBlockPreviousHash(position int, prevHash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.editable(position) {
		return false
	}

	c.blocks[position].SetPrevHash(prevHash)
	c.evHandler("chain: SetBlockPreviousHash: blk[%d]: hash[%s]", position, c.blocks[position].Hash)

	return true
}

// MineBlock re-mines the block at the specified position in place. This is a
// no-op for unknown positions and finalized blocks.
func (c *Chain) MineBlock(position int) (block.Block, bool) {
	b, err := c.MineBlockContext(context.Background(), position)
	if err != nil {
		return block.Block{}, false
	}

	return b, true
}

// MineBlockContext re-mines the block at the specified position in place.
// The mining operation can be cancelled or bounded with options.
func (c *Chain) MineBlockContext(ctx context.Context, position int, options ...block.MineOption) (block.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if position < 0 || position >= len(c.blocks) {
		return block.Block{}, ErrBlockNotFound
	}

	if block.IsFinalized(position, len(c.blocks)) {
		return block.Block{}, ErrFinalized
	}

	// Mine a copy so a failed operation leaves the chain untouched.
	b := c.blocks[position]

	opts := append([]block.MineOption{block.WithEvHandler(block.EventHandler(c.evHandler))}, options...)
	if err := b.Mine(ctx, c.difficulty, opts...); err != nil {
		return block.Block{}, err
	}

	c.blocks[position] = b
	return b, nil
}

// =============================================================================

// editable reports whether the block at the specified position exists and is
// not finalized. The caller must hold the lock.
func (c *Chain) editable(position int) bool {
	if position < 0 || position >= len(c.blocks) {
		return false
	}

	if block.IsFinalized(position, len(c.blocks)) {
		c.evHandler("chain: blk[%d]: FINALIZED: confirmations[%d]", position, block.Confirmations(position, len(c.blocks)))
		return false
	}

	return true
}

// validate checks the sequence of blocks against the chain rules at the
// current difficulty. The caller must hold the lock.
func (c *Chain) validate(blocks []block.Block) bool {
	if len(blocks) == 0 {
		return false
	}

	if err := blocks[0].ValidateGenesis(c.difficulty); err != nil {
		c.evHandler("chain: validate: INVALID: blk[0]: %s", err)
		return false
	}

	for i := 1; i < len(blocks); i++ {
		if err := blocks[i].ValidateNext(blocks[i-1], c.difficulty); err != nil {
			c.evHandler("chain: validate: INVALID: blk[%d]: %s", i, err)
			return false
		}
	}

	return true
}

// copyBlocks returns a copy of the specified blocks.
func copyBlocks(blocks []block.Block) []block.Block {
	cpy := make([]block.Block, len(blocks))
	copy(cpy, blocks)
	return cpy
}
