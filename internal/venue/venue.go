// Package venue declares the interface the core consumes from the
// out-of-scope "venue adapter" collaborator (a DEX quoter, spec.md §6.2).
// Like internal/chainadapter, the production implementation is someone
// else's concern; this package carries the interface, a deterministic Mock
// for tests, and one reference implementation (internal/venue/binance.go)
// that exercises a real market-data client without being part of the core
// pipeline.
package venue

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/chainarb/core/internal/types"
)

// Quote is the result of quoting a pair on a venue for a given input
// amount.
type Quote struct {
	Price        decimal.Decimal
	AmountOut    decimal.Decimal
	PriceImpact  decimal.Decimal
}

// SwapDirection selects which side of the pair is being sold.
type SwapDirection int

const (
	DirectionAToB SwapDirection = iota
	DirectionBToA
)

// Adapter quotes a pair on a venue and can build (but not submit — that is
// the Chain Adapter's job) a swap transaction. Every method must be called
// within quoteDeadline (spec.md §5).
type Adapter interface {
	Name() string
	Quote(ctx context.Context, pair types.Pair, amountIn decimal.Decimal) (Quote, error)
	Liquidity(ctx context.Context, pair types.Pair) (decimal.Decimal, error)
	BuildSwap(ctx context.Context, pair types.Pair, dir SwapDirection, amountIn, minOut decimal.Decimal, recipient string, deadline int64) (any, error)
}
