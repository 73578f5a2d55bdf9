package scanner

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// LoanProvider is a single flash-loan source: a cap on how much it can
// lend and the fee it charges, expressed in basis points. Supplements
// spec.md §4.2's "choose the cheapest provider with sufficient liquidity"
// with a real injected collaborator rather than a magic constant.
type LoanProvider struct {
	ID           string
	MaxLiquidity decimal.Decimal
	FeeBps       int64
}

// FeeFraction returns the provider's fee as a decimal fraction (50 bps ->
// 0.0050).
func (p LoanProvider) FeeFraction() decimal.Decimal {
	return decimal.NewFromInt(p.FeeBps).Div(decimal.NewFromInt(10_000))
}

// LoanProviderCatalog holds the configured flash-loan providers.
type LoanProviderCatalog struct {
	providers []LoanProvider
}

// NewLoanProviderCatalog builds a catalog from the configured providers.
func NewLoanProviderCatalog(providers []LoanProvider) LoanProviderCatalog {
	return LoanProviderCatalog{providers: append([]LoanProvider(nil), providers...)}
}

// Cheapest returns the lowest-fee provider with MaxLiquidity >= amount, or
// an error if none qualifies.
func (c LoanProviderCatalog) Cheapest(amount decimal.Decimal) (LoanProvider, error) {
	var best *LoanProvider
	for i := range c.providers {
		p := c.providers[i]
		if p.MaxLiquidity.LessThan(amount) {
			continue
		}
		if best == nil || p.FeeBps < best.FeeBps {
			best = &p
		}
	}
	if best == nil {
		return LoanProvider{}, fmt.Errorf("scanner: no flash-loan provider has sufficient liquidity for %s", amount.String())
	}
	return *best, nil
}
