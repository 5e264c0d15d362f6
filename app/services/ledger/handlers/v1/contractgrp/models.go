package contractgrp

// NewContract is what we require from clients when deploying a contract.
type NewContract struct {
	TemplateID string `json:"template_id" validate:"required"`
}

// CallRequest is what we require from clients when calling a function. A
// zero gas limit uses the cost of the steps the call runs and a zero gas price
// uses the current price.
type CallRequest struct {
	Function string   `json:"function" validate:"required"`
	Args     []string `json:"args"`
	GasLimit uint64   `json:"gas_limit"`
	GasPrice uint64   `json:"gas_price"`
}

// ExecuteRequest is what we require from clients when simulating a flat cost
// operation.
type ExecuteRequest struct {
	Operation string `json:"operation" validate:"required,oneof=transfer store read complex deploy"`
	GasLimit  uint64 `json:"gas_limit" validate:"required"`
	GasPrice  uint64 `json:"gas_price"`
}

// Estimate is the estimated cost of an operation at the current price.
type Estimate struct {
	Operation string `json:"operation"`
	Gas       uint64 `json:"gas"`
	GasPrice  uint64 `json:"gas_price"`
	Cost      uint64 `json:"cost"`
}
