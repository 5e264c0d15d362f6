// Package mempool maintains the pending transactions waiting to be mined.
package mempool

import (
	"sync"
	"time"
)

// BlockSize is the default number of transactions picked for a block.
const BlockSize = 10

// PruneAge is how long a transaction paying less than the standard fee can
// wait before it is dropped.
const PruneAge = 30 * time.Minute

// Mempool represents a cache of pending transactions keyed by id.
type Mempool struct {
	mu       sync.RWMutex
	pool     map[string]Tx
	selectFn SelectFunc
}

// New constructs a new mempool using the default fee strategy.
func New() *Mempool {
	mp, _ := NewWithStrategy(StrategyFee)
	return mp
}

// NewWithStrategy constructs a new mempool with specified select strategy.
func NewWithStrategy(strategy string) (*Mempool, error) {
	selectFn, err := RetrieveStrategy(strategy)
	if err != nil {
		return nil, err
	}

	mp := Mempool{
		pool:     make(map[string]Tx),
		selectFn: selectFn,
	}

	return &mp, nil
}

// Count returns the current number of transactions in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds a transaction to the pool. A transaction with an id already in
// the pool only replaces it when it pays a higher fee. It reports whether
// the pool changed.
func (mp *Mempool) Upsert(tx Tx) bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if cur, exists := mp.pool[tx.ID]; exists && tx.Fee <= cur.Fee {
		return false
	}

	tx.Status = StatusPending
	mp.pool[tx.ID] = tx

	return true
}

// Get returns the transaction for the specified id.
func (mp *Mempool) Get(id string) (Tx, bool) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	tx, exists := mp.pool[id]
	return tx, exists
}

// Delete removes the transactions with the specified ids from the pool.
func (mp *Mempool) Delete(ids ...string) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	for _, id := range ids {
		delete(mp.pool, id)
	}
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]Tx)
}

// ReplaceFee raises the fee of a pending transaction. A fee that isn't
// strictly higher is ignored. It reports whether the fee changed.
func (mp *Mempool) ReplaceFee(id string, fee uint64) bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	tx, exists := mp.pool[id]
	if !exists || fee <= tx.Fee {
		return false
	}

	tx.Fee = fee
	mp.pool[id] = tx

	return true
}

// Cancel replaces a pending transaction with a zero value transfer back to
// the sender paying the specified fee, which must be strictly higher than
// the current one. It reports whether the transaction was replaced.
func (mp *Mempool) Cancel(id string, fee uint64) bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	tx, exists := mp.pool[id]
	if !exists || fee <= tx.Fee {
		return false
	}

	tx.To = tx.From
	tx.Amount = 0
	tx.Fee = fee
	tx.Status = StatusPending
	mp.pool[id] = tx

	return true
}

// Prune drops every transaction that has waited longer than PruneAge while
// paying less than the standard fee. It returns the dropped transactions.
func (mp *Mempool) Prune(now time.Time) []Tx {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	var dropped []Tx
	for id, tx := range mp.pool {
		if tx.Age(now) > PruneAge && tx.Fee < FeeStandard {
			tx.Status = StatusDropped
			dropped = append(dropped, tx)
			delete(mp.pool, id)
		}
	}

	return dropped
}

// PickBest uses the configured select strategy to return the next set of
// transactions for the next block. Pass -1 for all the transactions.
func (mp *Mempool) PickBest(howMany int) []Tx {
	return mp.selectFn(mp.snapshot(), howMany)
}

// Pending returns every transaction in the order the strategy prefers.
func (mp *Mempool) Pending() []Tx {
	return mp.PickBest(-1)
}

// Position returns the 1 based position of the transaction in the order the
// strategy prefers, or 0 if the transaction is not in the pool.
func (mp *Mempool) Position(id string) int {
	for i, tx := range mp.Pending() {
		if tx.ID == id {
			return i + 1
		}
	}

	return 0
}

// EstimateConfirmationBlocks returns the number of blocks a transaction
// paying the specified fee can expect to wait.
func EstimateConfirmationBlocks(fee uint64) int {
	switch {
	case fee >= FeeHigh:
		return 1
	case fee >= FeeStandard:
		return 3
	case fee >= FeeEconomy:
		return 10
	default:
		return 20
	}
}

// =============================================================================

// snapshot returns a copy of the transactions in the pool.
func (mp *Mempool) snapshot() []Tx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	txs := make([]Tx, 0, len(mp.pool))
	for _, tx := range mp.pool {
		txs = append(txs, tx)
	}

	return txs
}
