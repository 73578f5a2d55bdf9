package pricecache

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// RateOracle is the production types.USDOracle: a configured table of
// token -> USD-per-unit rates, seeded at construction and updatable at
// runtime through SetRate; nothing refreshes it on its own. A token absent from the table has no known rate and USDValue fails
// closed, per spec.md §9 — it never fabricates a price.
type RateOracle struct {
	mu    sync.RWMutex
	rates map[string]decimal.Decimal
}

// NewRateOracle builds a RateOracle seeded with initial, a starting
// token->USD rate table (stablecoins are typically seeded at 1).
func NewRateOracle(initial map[string]decimal.Decimal) *RateOracle {
	rates := make(map[string]decimal.Decimal, len(initial))
	for token, rate := range initial {
		rates[token] = rate
	}
	return &RateOracle{rates: rates}
}

// SetRate sets or replaces token's USD-per-unit rate.
func (o *RateOracle) SetRate(token string, rate decimal.Decimal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rates[token] = rate
}

// USDValue satisfies types.USDOracle.
func (o *RateOracle) USDValue(token string, amount decimal.Decimal) (decimal.Decimal, error) {
	o.mu.RLock()
	rate, ok := o.rates[token]
	o.mu.RUnlock()
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("pricecache: no USD rate known for token %q", token)
	}
	return amount.Mul(rate), nil
}
