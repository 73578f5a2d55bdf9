package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pair is an ordered token pair (tokenA, tokenB) quoted on a single venue.
type Pair struct {
	TokenA string
	TokenB string
}

// PriceQuote is a single venue's price for a pair at a point in time, per
// spec.md §3.
type PriceQuote struct {
	Chain     string
	Venue     string
	Pair      Pair
	Price     decimal.Decimal
	Liquidity decimal.Decimal
	Timestamp time.Time
}

// Stale reports whether the quote is older than ttl as of now.
func (q PriceQuote) Stale(now time.Time, ttl time.Duration) bool {
	return now.Sub(q.Timestamp) > ttl
}

// TxRef is an opaque reference to a submitted transaction, returned by the
// Chain Adapter and threaded through to ExecutionResult.
type TxRef string

// ExecutionResult is the outcome of driving one Opportunity through the
// Execution Coordinator's state machine, per spec.md §3.
type ExecutionResult struct {
	OpportunityID        string
	Success              bool
	RealizedProfitUSD    decimal.Decimal
	RealizedGasCostUSD   decimal.Decimal
	TxRefs               []TxRef
	Elapsed              time.Duration
	Error                error
	FinalState           State
	RecordedAt           time.Time
}

// PortfolioLimits holds the risk gates enforced by the Risk Manager, per
// spec.md §3.
type PortfolioLimits struct {
	MaxSingleTradeUSD   decimal.Decimal
	MaxDailyVolumeUSD   map[string]decimal.Decimal // per chain
	MaxGasCostPct       decimal.Decimal            // of gross profit
	MaxConcurrentTrades int
	MinLiquidityRatio   decimal.Decimal
}

// Blacklists holds token and venue identifiers that are never eligible for
// execution, regardless of profitability.
type Blacklists struct {
	Tokens map[string]bool
	Venues map[string]bool
}

// NewBlacklists builds a Blacklists from slices, as loaded from config.
func NewBlacklists(tokens, venues []string) Blacklists {
	bl := Blacklists{Tokens: make(map[string]bool, len(tokens)), Venues: make(map[string]bool, len(venues))}
	for _, t := range tokens {
		bl.Tokens[t] = true
	}
	for _, v := range venues {
		bl.Venues[v] = true
	}
	return bl
}

// Blocks reports whether any token in path or venue in venues is blacklisted.
func (b Blacklists) Blocks(path, venues []string) bool {
	for _, t := range path {
		if b.Tokens[t] {
			return true
		}
	}
	for _, v := range venues {
		if b.Venues[v] {
			return true
		}
	}
	return false
}

// USDOracle converts on-chain/venue-native amounts to USD. Components that
// need a USD figure and cannot get one from the oracle must fail closed
// (reject the opportunity) rather than fabricate a price — see spec.md §9.
type USDOracle interface {
	USDValue(token string, amount decimal.Decimal) (decimal.Decimal, error)
}
