// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/ledgersim/app/services/ledger/handlers/v1/contractgrp"
	"github.com/ardanlabs/ledgersim/app/services/ledger/handlers/v1/netgrp"
	"github.com/ardanlabs/ledgersim/business/core/contract"
	"github.com/ardanlabs/ledgersim/business/core/ledger"
	"github.com/ardanlabs/ledgersim/business/web/mid"
	"github.com/ardanlabs/ledgersim/foundation/events"
	"github.com/ardanlabs/ledgersim/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log        *zap.SugaredLogger
	Ledger     *ledger.Core
	Contract   *contract.Core
	Evts       *events.Events
	CorsOrigin string
}

// Routes binds all the version 1 routes.
func Routes(app *web.App, cfg Config) {
	var mw []web.Middleware
	if cfg.CorsOrigin != "" {
		mw = append(mw, mid.Cors(cfg.CorsOrigin))
	}

	ngh := netgrp.Handlers{
		Log:    cfg.Log,
		Ledger: cfg.Ledger,
		Evts:   cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", ngh.Events)

	app.Handle(http.MethodGet, version, "/network/peers", ngh.Peers, mw...)
	app.Handle(http.MethodPost, version, "/network/peers", ngh.AddPeer, mw...)
	app.Handle(http.MethodGet, version, "/network/peers/:id", ngh.Peer, mw...)
	app.Handle(http.MethodDelete, version, "/network/peers/:id", ngh.RemovePeer, mw...)
	app.Handle(http.MethodGet, version, "/network/peers/:id/chain", ngh.Chain, mw...)
	app.Handle(http.MethodPost, version, "/network/peers/:id/mine", ngh.Mine, mw...)
	app.Handle(http.MethodPost, version, "/network/peers/:id/mine-pending", ngh.MinePending, mw...)
	app.Handle(http.MethodPost, version, "/network/peers/:id/blocks/:index/tamper", ngh.Tamper, mw...)
	app.Handle(http.MethodPost, version, "/network/peers/:id/blocks/:index/remine", ngh.Remine, mw...)
	app.Handle(http.MethodPost, version, "/network/peers/:id/blocks/:index/prevhash", ngh.PrevHash, mw...)
	app.Handle(http.MethodGet, version, "/network/peers/:id/blocks/:index/proof/:tx", ngh.TxProof, mw...)
	app.Handle(http.MethodPost, version, "/network/consensus", ngh.Consensus, mw...)

	app.Handle(http.MethodGet, version, "/mempool", ngh.Mempool, mw...)
	app.Handle(http.MethodPost, version, "/mempool/tx", ngh.SubmitTx, mw...)
	app.Handle(http.MethodPost, version, "/mempool/tx/:tx/fee", ngh.BumpFee, mw...)
	app.Handle(http.MethodPost, version, "/mempool/tx/:tx/cancel", ngh.CancelTx, mw...)

	app.Handle(http.MethodPost, version, "/merkle/proof", ngh.MerkleProof, mw...)

	cgh := contractgrp.Handlers{
		Log:      cfg.Log,
		Contract: cfg.Contract,
	}

	app.Handle(http.MethodGet, version, "/contracts/templates", cgh.Templates, mw...)
	app.Handle(http.MethodGet, version, "/contracts", cgh.List, mw...)
	app.Handle(http.MethodPost, version, "/contracts", cgh.Deploy, mw...)
	app.Handle(http.MethodGet, version, "/contracts/:id", cgh.Get, mw...)
	app.Handle(http.MethodPost, version, "/contracts/:id/call", cgh.Call, mw...)

	app.Handle(http.MethodGet, version, "/gas/price", cgh.GasPrice, mw...)
	app.Handle(http.MethodGet, version, "/gas/estimate/:op", cgh.EstimateGas, mw...)
	app.Handle(http.MethodPost, version, "/gas/execute", cgh.ExecuteGas, mw...)
}
