package types

import "errors"

// Structural validation errors for Opportunity.Validate.
var (
	ErrMissingID         = errors.New("types: opportunity id is empty")
	ErrPathVenueMismatch = errors.New("types: len(venues) must equal len(path)-1")
	ErrNegativeAmount    = errors.New("types: amount_in must be non-negative")
	ErrNetProfitMismatch = errors.New("types: net_profit_usd != gross_profit_usd - gas_cost_usd - loan.fee")
)
