// Package netgrp maintains the group of handlers for the simulated network,
// its replicas and the mempool.
package netgrp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ardanlabs/ledgersim/business/core/ledger"
	"github.com/ardanlabs/ledgersim/business/web/errs"
	"github.com/ardanlabs/ledgersim/foundation/blockchain/block"
	"github.com/ardanlabs/ledgersim/foundation/blockchain/hash"
	"github.com/ardanlabs/ledgersim/foundation/blockchain/mempool"
	"github.com/ardanlabs/ledgersim/foundation/blockchain/merkle"
	"github.com/ardanlabs/ledgersim/foundation/events"
	"github.com/ardanlabs/ledgersim/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of network endpoints.
type Handlers struct {
	Log    *zap.SugaredLogger
	Ledger *ledger.Core
	WS     websocket.Upgrader
	Evts   *events.Events
}

// Events handles a web socket to provide events to a client. The topic query
// parameter, repeated or comma separated, limits the stream to the events of
// those engine packages: /v1/events?topic=chain,network.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID, topics(r)...)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// topics returns the event topics requested by the client.
func topics(r *http.Request) []string {
	var list []string
	for _, param := range r.URL.Query()["topic"] {
		list = append(list, strings.Split(param, ",")...)
	}

	return list
}

// =============================================================================

// Peers returns the signed status of every peer.
func (h Handlers) Peers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Ledger.Statuses(), http.StatusOK)
}

// Peer returns the signed status of the specified peer.
func (h Handlers) Peer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	st, err := h.Ledger.Status(web.Param(r, "id"))
	if err != nil {
		return toWebError(err)
	}

	return web.Respond(ctx, w, st, http.StatusOK)
}

// AddPeer adds a peer that starts from the shared genesis block.
func (h Handlers) AddPeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var np NewPeer
	if err := web.Decode(r, &np); err != nil {
		return errs.BadRequest(err)
	}

	st, err := h.Ledger.AddPeer(np.Name)
	if err != nil {
		return fmt.Errorf("add peer[%s]: %w", np.Name, err)
	}

	return web.Respond(ctx, w, st, http.StatusCreated)
}

// RemovePeer removes the specified peer from the network.
func (h Handlers) RemovePeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.Ledger.RemovePeer(web.Param(r, "id")); err != nil {
		return toWebError(err)
	}

	return web.Respond(ctx, w, nil, http.StatusNoContent)
}

// Chain returns the blocks held by the specified peer.
func (h Handlers) Chain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blocks, err := h.Ledger.Chain(web.Param(r, "id"))
	if err != nil {
		return toWebError(err)
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// Mine has the specified peer mine a block. Unless the block is local it is
// broadcast to every other peer.
func (h Handlers) Mine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req MineRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.BadRequest(err)
	}

	mine := h.Ledger.MineAndBroadcast
	if req.Local {
		mine = h.Ledger.MineLocal
	}

	b, err := mine(ctx, web.Param(r, "id"), req.Data)
	if err != nil {
		return toWebError(err)
	}

	return web.Respond(ctx, w, b, http.StatusCreated)
}

// MinePending has the specified peer mine the best pending transactions.
func (h Handlers) MinePending(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	batch, b, err := h.Ledger.MinePending(ctx, web.Param(r, "id"))
	if err != nil {
		return toWebError(err)
	}

	resp := MinedBatch{
		Block:      b,
		MerkleRoot: batch.MerkleRoot,
		Txs:        len(batch.Txs),
	}

	return web.Respond(ctx, w, resp, http.StatusCreated)
}

// Tamper changes the data of a block without mining it.
func (h Handlers) Tamper(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	index, err := blockIndex(r)
	if err != nil {
		return err
	}

	var req TamperRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.BadRequest(err)
	}

	b, err := h.Ledger.TamperBlock(web.Param(r, "id"), index, req.Data)
	if err != nil {
		return toWebError(err)
	}

	return web.Respond(ctx, w, b, http.StatusOK)
}

// PrevHash changes the previous hash of a block without mining it.
func (h Handlers) PrevHash(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	index, err := blockIndex(r)
	if err != nil {
		return err
	}

	var req PrevHashRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.BadRequest(err)
	}

	b, err := h.Ledger.SetPreviousHash(web.Param(r, "id"), index, req.PrevHash)
	if err != nil {
		return toWebError(err)
	}

	return web.Respond(ctx, w, b, http.StatusOK)
}

// Remine mines a block of the specified peer again.
func (h Handlers) Remine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	index, err := blockIndex(r)
	if err != nil {
		return err
	}

	b, err := h.Ledger.RemineBlock(ctx, web.Param(r, "id"), index)
	if err != nil {
		return toWebError(err)
	}

	return web.Respond(ctx, w, b, http.StatusOK)
}

// TxProof proves a mined transaction belongs to its block.
func (h Handlers) TxProof(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	index, err := blockIndex(r)
	if err != nil {
		return err
	}

	proof, err := h.Ledger.ProveTx(web.Param(r, "id"), index, web.Param(r, "tx"))
	if err != nil {
		return toWebError(err)
	}

	return web.Respond(ctx, w, proof, http.StatusOK)
}

// Consensus resolves every replica to the longest valid chain.
func (h Handlers) Consensus(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Ledger.RunConsensus(), http.StatusOK)
}

// =============================================================================

// Mempool returns the pending transactions in mining order.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Ledger.Mempool(), http.StatusOK)
}

// SubmitTx adds a transaction to the mempool. Submitting an id that is
// already pending with a higher fee replaces it.
func (h Handlers) SubmitTx(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var nt NewTx
	if err := web.Decode(r, &nt); err != nil {
		return errs.BadRequest(err)
	}

	tx := mempool.NewTx(nt.From, nt.To, nt.Amount, nt.Fee)
	if nt.ID != "" {
		tx.ID = nt.ID
	}

	stored, pos := h.Ledger.SubmitTx(tx)

	resp := SubmittedTx{
		ID:              stored.ID,
		Fee:             stored.Fee,
		Position:        pos,
		Pending:         len(h.Ledger.Mempool()),
		EstimatedBlocks: mempool.EstimateConfirmationBlocks(stored.Fee),
	}

	return web.Respond(ctx, w, resp, http.StatusCreated)
}

// BumpFee raises the fee of a pending transaction.
func (h Handlers) BumpFee(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req FeeRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.BadRequest(err)
	}

	tx, err := h.Ledger.BumpFee(web.Param(r, "tx"), req.Fee)
	if err != nil {
		return toWebError(err)
	}

	return web.Respond(ctx, w, tx, http.StatusOK)
}

// CancelTx replaces a pending transaction with a zero value self transfer.
func (h Handlers) CancelTx(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req FeeRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.BadRequest(err)
	}

	tx, err := h.Ledger.CancelTx(web.Param(r, "tx"), req.Fee)
	if err != nil {
		return toWebError(err)
	}

	return web.Respond(ctx, w, tx, http.StatusOK)
}

// =============================================================================

// MerkleProof builds a tree over the values and the proof for one of them.
func (h Handlers) MerkleProof(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req ProofRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.BadRequest(err)
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = hash.StrategySHA256
	}

	fn, err := hash.Lookup(strategy)
	if err != nil {
		return errs.BadRequest(err)
	}

	tree, err := merkle.NewTree(req.Values, merkle.WithHashStrategy(fn))
	if err != nil {
		return errs.BadRequest(err)
	}

	leaf, err := tree.LeafHash(req.Index)
	if err != nil {
		return errs.BadRequest(err)
	}

	proof, err := tree.Proof(req.Index)
	if err != nil {
		return errs.BadRequest(err)
	}

	resp := Proof{
		Root:     tree.RootHash(),
		LeafHash: leaf,
		Proof:    proof,
		Verified: merkle.VerifyProof(proof, leaf, tree.RootHash(), fn),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// =============================================================================

func blockIndex(r *http.Request) (int, error) {
	index, err := strconv.Atoi(web.Param(r, "index"))
	if err != nil {
		return 0, errs.BadRequest(fmt.Errorf("invalid block index %q", web.Param(r, "index")))
	}

	return index, nil
}

// toWebError maps the errors of the ledger to trusted errors.
func toWebError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrPeerNotFound),
		errors.Is(err, ledger.ErrBlockNotFound),
		errors.Is(err, ledger.ErrTxNotFound):
		return errs.NewTrusted(err, http.StatusNotFound)

	case errors.Is(err, ledger.ErrFeeTooLow):
		return errs.BadRequest(err)

	case errors.Is(err, ledger.ErrFinalized),
		errors.Is(err, ledger.ErrEmptyMempool),
		errors.Is(err, ledger.ErrNotBatch),
		errors.Is(err, block.ErrAttemptsExhausted):
		return errs.Conflict(err)

	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return errs.NewTrusted(err, http.StatusServiceUnavailable)
	}

	return err
}
