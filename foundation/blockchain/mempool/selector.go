package mempool

import (
	"fmt"
	"sort"
)

// List of different select strategies.
const (
	StrategyFee  = "fee"
	StrategyFIFO = "fifo"
)

// Map of different select strategies with functions.
var strategies = map[string]SelectFunc{
	StrategyFee:  feeSelect,
	StrategyFIFO: fifoSelect,
}

// SelectFunc defines a function that takes the pending transactions and
// returns howMany of them in the order the strategy prefers. Receiving -1 for
// howMany must return all the transactions in the strategy's ordering.
type SelectFunc func(txs []Tx, howMany int) []Tx

// RetrieveStrategy returns the specified select strategy function.
func RetrieveStrategy(strategy string) (SelectFunc, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// feeSelect orders by the highest fee, breaking ties with the oldest
// transaction.
var feeSelect = func(txs []Tx, howMany int) []Tx {
	sort.Sort(byFee(txs))
	return take(txs, howMany)
}

// fifoSelect orders by the oldest transaction regardless of fee.
var fifoSelect = func(txs []Tx, howMany int) []Tx {
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].Timestamp != txs[j].Timestamp {
			return txs[i].Timestamp < txs[j].Timestamp
		}
		return txs[i].ID < txs[j].ID
	})
	return take(txs, howMany)
}

func take(txs []Tx, howMany int) []Tx {
	if howMany < 0 || howMany > len(txs) {
		howMany = len(txs)
	}

	return txs[:howMany]
}

// =============================================================================

// byFee provides sorting support by the transaction fee value.
type byFee []Tx

// Len returns the number of transactions in the list.
func (bf byFee) Len() int {
	return len(bf)
}

// Less helps to sort the list by fee in descending order to pick the
// transactions that provide the best reward. Older transactions go first on
// an equal fee. The id keeps the order total.
func (bf byFee) Less(i, j int) bool {
	switch {
	case bf[i].Fee != bf[j].Fee:
		return bf[i].Fee > bf[j].Fee
	case bf[i].Timestamp != bf[j].Timestamp:
		return bf[i].Timestamp < bf[j].Timestamp
	default:
		return bf[i].ID < bf[j].ID
	}
}

// Swap moves transactions in the order of the fee value.
func (bf byFee) Swap(i, j int) {
	bf[i], bf[j] = bf[j], bf[i]
}
