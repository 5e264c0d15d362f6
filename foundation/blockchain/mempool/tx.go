package mempool

import (
	"time"

	"github.com/google/uuid"
)

// Set of fee levels a sender can pick from.
const (
	FeeEconomy  uint64 = 1
	FeeStandard uint64 = 5
	FeeHigh     uint64 = 10
)

// Set of states a transaction can be in.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusDropped   = "dropped"
)

// Tx is a pending value transfer waiting to be mined into a block.
type Tx struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    uint64 `json:"amount"`
	Fee       uint64 `json:"fee"`
	Timestamp int64  `json:"timestamp"`
	Status    string `json:"status"`
}

// NewTx constructs a pending transaction with a fresh id stamped with the
// current time.
func NewTx(from string, to string, amount uint64, fee uint64) Tx {
	return Tx{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Amount:    amount,
		Fee:       fee,
		Timestamp: time.Now().UnixMilli(),
		Status:    StatusPending,
	}
}

// Age returns how long the transaction has been waiting as of now.
func (tx Tx) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(tx.Timestamp))
}
