// Package block defines a block in the simulated ledger and the proof of work
// rules used to mine and validate it.
package block

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ardanlabs/ledgersim/foundation/blockchain/hash"
)

// Set of error variables for mining and validating blocks.
var (
	ErrDifficulty        = fmt.Errorf("difficulty can't exceed %d", hash.Size)
	ErrAttemptsExhausted = errors.New("mining attempts exhausted")
)

const (
	// GenesisData is the fixed data carried by block 0 of every chain.
	GenesisData = "Genesis Block"

	// GenesisPrevHash is the previous hash value carried by block 0.
	GenesisPrevHash = "0"

	// FinalityDepth is the number of confirmations after which a block is
	// treated as immutable.
	FinalityDepth = 6
)

// progressInterval is how many attempts pass between mining progress events.
const progressInterval = 100_000

// =============================================================================

// EventHandler defines a function that is called when events occur while
// mining a block.
type EventHandler func(v string, args ...any)

// Block represents a single entry in the ledger.
type Block struct {
	Index     uint64 `json:"index"`
	Timestamp int64  `json:"timestamp"` // Milliseconds since the unix epoch.
	Data      string `json:"data"`
	PrevHash  string `json:"previous_hash"`
	Nonce     uint64 `json:"nonce"`
	Hash      string `json:"hash"`
}

// New constructs a block that has not been mined. The nonce starts at zero
// and the hash is calculated from the initial fields.
func New(index uint64, data string, prevHash string) Block {
	b := Block{
		Index:     index,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
		PrevHash:  prevHash,
	}
	b.Hash = b.CalculateHash()

	return b
}

// Genesis constructs and mines the first block of a chain.
func Genesis(difficulty uint) (Block, error) {
	b := New(0, GenesisData, GenesisPrevHash)
	if err := b.Mine(context.Background(), difficulty); err != nil {
		return Block{}, err
	}

	return b, nil
}

// CalculateHash recomputes the hash from the current fields of the block. The
// stored Hash field is not part of the input.
func (b Block) CalculateHash() string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatUint(b.Index, 10))
	sb.WriteString(strconv.FormatInt(b.Timestamp, 10))
	sb.WriteString(b.Data)
	sb.WriteString(b.PrevHash)
	sb.WriteString(strconv.FormatUint(b.Nonce, 10))

	return hash.SHA256(sb.String())
}

// IsIntact reports whether the stored hash matches the current fields.
func (b Block) IsIntact() bool {
	return b.Hash == b.CalculateHash()
}

// IsSolved reports whether the stored hash satisfies proof of work at the
// specified difficulty.
func (b Block) IsSolved(difficulty uint) bool {
	return isHashSolved(difficulty, b.Hash)
}

// IsGenesis reports whether the block carries the fixed genesis fields.
func (b Block) IsGenesis() bool {
	return b.Index == 0 && b.PrevHash == GenesisPrevHash && b.Data == GenesisData
}

// =============================================================================

type mineConfig struct {
	maxAttempts uint64
	ev          EventHandler
}

// MineOption changes the default behavior of a mining operation.
type MineOption func(cfg *mineConfig)

// WithMaxAttempts caps the number of nonces tried before mining gives up
// with ErrAttemptsExhausted. Zero means no cap.
func WithMaxAttempts(n uint64) MineOption {
	return func(cfg *mineConfig) {
		cfg.maxAttempts = n
	}
}

// WithEvHandler provides a handler that receives mining progress events.
func WithEvHandler(ev EventHandler) MineOption {
	return func(cfg *mineConfig) {
		if ev != nil {
			cfg.ev = ev
		}
	}
}

// Mine increments the nonce until the hash satisfies proof of work at the
// specified difficulty. Pointer semantics are used since the nonce and hash
// are discovered in place. The search is unbounded unless the context is
// cancelled or a max attempts option is provided. On error the block holds
// the last nonce tried and a hash that matches it.
func (b *Block) Mine(ctx context.Context, difficulty uint, options ...MineOption) error {
	if difficulty > hash.Size {
		return ErrDifficulty
	}

	cfg := mineConfig{
		ev: func(string, ...any) {},
	}
	for _, option := range options {
		option(&cfg)
	}

	// The stored hash may be stale if fields were changed by hand.
	b.Hash = b.CalculateHash()

	var attempts uint64
	for !isHashSolved(difficulty, b.Hash) {
		if attempts%1024 == 0 && ctx.Err() != nil {
			cfg.ev("block: Mine: blk[%d]: CANCELLED: attempts[%d]", b.Index, attempts)
			return ctx.Err()
		}

		if cfg.maxAttempts > 0 && attempts >= cfg.maxAttempts {
			cfg.ev("block: Mine: blk[%d]: EXHAUSTED: attempts[%d]", b.Index, attempts)
			return ErrAttemptsExhausted
		}

		attempts++
		b.Nonce++
		b.Hash = b.CalculateHash()

		if attempts%progressInterval == 0 {
			cfg.ev("block: Mine: blk[%d]: attempts[%d]", b.Index, attempts)
		}
	}

	cfg.ev("block: Mine: blk[%d]: SOLVED: nonce[%d]: hash[%s]: attempts[%d]", b.Index, b.Nonce, b.Hash, attempts)

	return nil
}

// SetData replaces the data and recomputes the hash without mining. The block
// will usually no longer satisfy proof of work and any block that links to it
// is now broken.
func (b *Block) SetData(data string) {
	b.Data = data
	b.Hash = b.CalculateHash()
}

// SetPrevHash replaces the previous hash and recomputes the hash without
// mining. The nonce is left untouched.
func (b *Block) SetPrevHash(prevHash string) {
	b.PrevHash = prevHash
	b.Hash = b.CalculateHash()
}

// =============================================================================

// ValidateGenesis checks the block is a well formed genesis block at the
// specified difficulty.
func (b Block) ValidateGenesis(difficulty uint) error {
	if !b.IsGenesis() {
		return fmt.Errorf("block is not a genesis block, index %d, prev %q", b.Index, b.PrevHash)
	}

	if !b.IsIntact() {
		return fmt.Errorf("genesis hash doesn't match its fields, got %s, exp %s", b.Hash, b.CalculateHash())
	}

	if !b.IsSolved(difficulty) {
		return fmt.Errorf("genesis hash %s is not solved for difficulty %d", b.Hash, difficulty)
	}

	return nil
}

// ValidateNext checks the block can follow the specified previous block at
// the specified difficulty.
func (b Block) ValidateNext(prev Block, difficulty uint) error {
	if b.Index != prev.Index+1 {
		return fmt.Errorf("this block is not the next number, got %d, exp %d", b.Index, prev.Index+1)
	}

	if b.PrevHash != prev.Hash {
		return fmt.Errorf("previous block hash doesn't match our known parent, got %s, exp %s", b.PrevHash, prev.Hash)
	}

	if !b.IsIntact() {
		return fmt.Errorf("block hash doesn't match its fields, got %s, exp %s", b.Hash, b.CalculateHash())
	}

	if !b.IsSolved(difficulty) {
		return fmt.Errorf("block hash %s is not solved for difficulty %d", b.Hash, difficulty)
	}

	return nil
}

// =============================================================================

// Confirmations returns the number of blocks that follow the block at the
// specified position in a chain of the specified length. The tip has zero.
func Confirmations(position int, length int) int {
	return max(0, length-1-position)
}

// IsFinalized reports whether the block at the specified position has enough
// confirmations to be treated as immutable.
func IsFinalized(position int, length int) bool {
	return Confirmations(position, length) >= FinalityDepth
}

// isHashSolved checks the hash to make sure it complies with the proof of
// work rules. We need to match a difficulty number of 0's.
func isHashSolved(difficulty uint, hash string) bool {
	if int(difficulty) > len(hash) {
		return false
	}

	return strings.Count(hash[:difficulty], "0") == int(difficulty)
}
