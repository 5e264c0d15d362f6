// Package worker implements mining of pending transactions in the background
// for the ledger.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/ardanlabs/ledgersim/business/core/ledger"
)

// Worker manages the background mining workflow for the ledger.
type Worker struct {
	ledger       *ledger.Core
	minerID      string
	wg           sync.WaitGroup
	shut         chan struct{}
	startMining  chan bool
	cancelMining chan bool
	evHandler    ledger.EventHandler
}

// Run creates a worker that mines on the specified peer, registers the
// worker with the ledger, and starts up the background processes.
func Run(lgr *ledger.Core, minerID string, evHandler ledger.EventHandler) *Worker {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	w := Worker{
		ledger:       lgr,
		minerID:      minerID,
		shut:         make(chan struct{}),
		startMining:  make(chan bool, 1),
		cancelMining: make(chan bool, 1),
		evHandler:    evHandler,
	}

	// Register this worker with the ledger.
	lgr.Worker = &w

	// We don't want to return until we know the G is up and running.
	hasStarted := make(chan bool)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		hasStarted <- true
		w.miningOperations()
	}()

	<-hasStarted

	// Pick up anything that was submitted before the worker existed.
	w.SignalStartMining()

	return &w
}

// =============================================================================
// These methods implement the ledger.Worker interface.

// Shutdown terminates the goroutine performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: signal cancel mining")
	w.SignalCancelMining()

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()
}

// SignalStartMining starts a mining operation. If there is already a signal
// pending in the channel, just return since a mining operation will start.
func (w *Worker) SignalStartMining() {
	select {
	case w.startMining <- true:
		w.evHandler("worker: SignalStartMining: mining signaled")
	default:
	}
}

// SignalCancelMining signals the G executing the runMiningOperation function
// to stop immediately.
func (w *Worker) SignalCancelMining() {
	select {
	case w.cancelMining <- true:
		w.evHandler("worker: SignalCancelMining: MINING: CANCEL: signaled")
	default:
	}
}

// =============================================================================

// miningOperations handles mining.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		select {
		case <-w.startMining:
			if !w.isShutdown() {
				w.runMiningOperation()
			}
		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}
	}
}

// runMiningOperation mines the best pending transactions into a block that
// is broadcast to every peer.
func (w *Worker) runMiningOperation() {
	w.evHandler("worker: runMiningOperation: MINING: started")
	defer w.evHandler("worker: runMiningOperation: MINING: completed")

	// Make sure there are transactions in the mempool.
	length := w.ledger.PendingCount()
	if length == 0 {
		w.evHandler("worker: runMiningOperation: MINING: no transactions to mine: Txs[%d]", length)
		return
	}

	// Drain the cancel mining channel before starting.
	select {
	case <-w.cancelMining:
		w.evHandler("worker: runMiningOperation: MINING: drained cancel channel")
	default:
	}

	// Create a context so mining can be cancelled.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Can't return from this function until this G is complete.
	var wg sync.WaitGroup
	wg.Add(1)

	// This G exists to cancel the mining operation.
	go func() {
		defer wg.Done()

		select {
		case <-w.cancelMining:
			w.evHandler("worker: runMiningOperation: MINING: CANCEL: requested")
		case <-w.shut:
			w.evHandler("worker: runMiningOperation: MINING: CANCEL: shutdown")
		case <-ctx.Done():
		}
		cancel()
	}()

	batch, b, err := w.ledger.MinePending(ctx, w.minerID)
	cancel()
	wg.Wait()

	switch {
	case errors.Is(err, context.Canceled):
		w.evHandler("worker: runMiningOperation: MINING: CANCELLED")
	case errors.Is(err, ledger.ErrEmptyMempool):
		w.evHandler("worker: runMiningOperation: MINING: nothing left after pruning")
		return
	case err != nil:
		w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)
		return
	default:
		w.evHandler("worker: runMiningOperation: MINING: blk[%d]: txs[%d]: merkle[%s]", b.Index, len(batch.Txs), batch.MerkleRoot)
	}

	// After a mined or cancelled block, check if a new operation should be
	// signaled again.
	if length := w.ledger.PendingCount(); length > 0 && !w.isShutdown() {
		w.evHandler("worker: runMiningOperation: MINING: signal new mining operation: Txs[%d]", length)
		w.SignalStartMining()
	}
}

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
