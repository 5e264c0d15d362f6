// Package contractgrp maintains the group of handlers for the contract
// sandbox and the gas system.
package contractgrp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ardanlabs/ledgersim/business/core/contract"
	"github.com/ardanlabs/ledgersim/business/web/errs"
	"github.com/ardanlabs/ledgersim/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of contract endpoints.
type Handlers struct {
	Log      *zap.SugaredLogger
	Contract *contract.Core
}

// Templates returns the templates that can be deployed.
func (h Handlers) Templates(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Contract.Templates(), http.StatusOK)
}

// List returns every deployed instance.
func (h Handlers) List(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Contract.Instances(), http.StatusOK)
}

// Get returns the specified deployed instance.
func (h Handlers) Get(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	info, err := h.Contract.Instance(web.Param(r, "id"))
	if err != nil {
		return toWebError(err)
	}

	return web.Respond(ctx, w, info, http.StatusOK)
}

// Deploy creates a new instance of a template.
func (h Handlers) Deploy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var nc NewContract
	if err := web.Decode(r, &nc); err != nil {
		return errs.BadRequest(err)
	}

	info, err := h.Contract.Deploy(nc.TemplateID)
	if err != nil {
		return toWebError(err)
	}

	return web.Respond(ctx, w, info, http.StatusCreated)
}

// Call runs a function against a deployed instance. A reverted call is not
// an error of the request. The result reports the revert reason.
func (h Handlers) Call(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req CallRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.BadRequest(err)
	}

	res, err := h.Contract.Call(ctx, web.Param(r, "id"), req.Function, req.Args, req.GasLimit, req.GasPrice)
	if err != nil {
		return toWebError(err)
	}

	return web.Respond(ctx, w, res, http.StatusOK)
}

// =============================================================================

// GasPrice returns the current gas price.
func (h Handlers) GasPrice(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := struct {
		GasPrice uint64 `json:"gas_price"`
	}{
		GasPrice: h.Contract.GasPrice(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// EstimateGas returns the estimated cost of an operation.
func (h Handlers) EstimateGas(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	op := web.Param(r, "op")

	gas, err := h.Contract.EstimateGas(op)
	if err != nil {
		return toWebError(err)
	}

	price := h.Contract.GasPrice()

	resp := Estimate{
		Operation: op,
		Gas:       gas,
		GasPrice:  price,
		Cost:      gas * price,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// ExecuteGas simulates running a flat cost operation under a gas limit.
func (h Handlers) ExecuteGas(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req ExecuteRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.BadRequest(err)
	}

	res, err := h.Contract.ExecuteGas(req.Operation, req.GasLimit, req.GasPrice)
	if err != nil {
		return toWebError(err)
	}

	return web.Respond(ctx, w, res, http.StatusOK)
}

// =============================================================================

// toWebError maps the errors of the sandbox to trusted errors.
func toWebError(err error) error {
	switch {
	case errors.Is(err, contract.ErrNotFound),
		errors.Is(err, contract.ErrUnknownTemplate):
		return errs.NewTrusted(err, http.StatusNotFound)

	case errors.Is(err, contract.ErrUnknownFunction),
		errors.Is(err, contract.ErrInvalidArgs),
		errors.Is(err, contract.ErrUnknownOp):
		return errs.BadRequest(err)
	}

	return fmt.Errorf("contract: %w", err)
}
