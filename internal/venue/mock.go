package venue

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/chainarb/core/internal/types"
)

// FeeSchedule mirrors a FeeConfig shape: per-venue fee and slippage
// simulation parameters used by Mock to produce realistic quotes.
type FeeSchedule struct {
	Taker        decimal.Decimal // fraction, e.g. 0.001 for 0.1%
	BaseSlippage decimal.Decimal
	MarketImpact decimal.Decimal // per unit of amountIn
	MaxSlippage  decimal.Decimal
}

// DefaultFeeSchedule mirrors a typical DEX: 0.3% taker, small slippage.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		Taker:        decimal.NewFromFloat(0.003),
		BaseSlippage: decimal.NewFromFloat(0.0005),
		MarketImpact: decimal.NewFromFloat(0.0001),
		MaxSlippage:  decimal.NewFromFloat(0.03),
	}
}

// Mock is a deterministic in-memory venue used by scanner/aggregator/
// executor tests and local paper runs. Prices are set explicitly via
// SetPrice/SetLiquidity; Quote applies fee + a size-proportional slippage
// model in the same spirit as internal/exchange.MockExchange.
type Mock struct {
	name string
	fees FeeSchedule

	mu        sync.RWMutex
	prices    map[string]decimal.Decimal // "tokenA/tokenB" -> price (tokenB per tokenA)
	liquidity map[string]decimal.Decimal
}

// NewMock builds a Mock venue with the given name and fee schedule.
func NewMock(name string, fees FeeSchedule) *Mock {
	return &Mock{
		name:      name,
		fees:      fees,
		prices:    make(map[string]decimal.Decimal),
		liquidity: make(map[string]decimal.Decimal),
	}
}

func pairKey(p types.Pair) string { return p.TokenA + "/" + p.TokenB }

// SetPrice sets the quoted price (tokenB per unit of tokenA) for pair.
func (m *Mock) SetPrice(pair types.Pair, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[pairKey(pair)] = price
}

// SetLiquidity sets the USD liquidity depth for pair.
func (m *Mock) SetLiquidity(pair types.Pair, liquidityUSD decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.liquidity[pairKey(pair)] = liquidityUSD
}

func (m *Mock) Name() string { return m.name }

func (m *Mock) Quote(ctx context.Context, pair types.Pair, amountIn decimal.Decimal) (Quote, error) {
	m.mu.RLock()
	price, ok := m.prices[pairKey(pair)]
	liq := m.liquidity[pairKey(pair)]
	m.mu.RUnlock()

	if !ok {
		return Quote{}, fmt.Errorf("venue %s: no price set for %s", m.name, pairKey(pair))
	}

	// size-proportional slippage: base + marketImpact*amountIn, capped
	slippage := m.fees.BaseSlippage.Add(m.fees.MarketImpact.Mul(amountIn))
	if slippage.GreaterThan(m.fees.MaxSlippage) {
		slippage = m.fees.MaxSlippage
	}

	effectivePrice := price.Mul(decimal.NewFromInt(1).Sub(slippage))
	grossOut := amountIn.Mul(effectivePrice)
	feeAmount := grossOut.Mul(m.fees.Taker)
	amountOut := grossOut.Sub(feeAmount)

	priceImpact := slippage
	if !liq.IsZero() {
		notional := amountIn.Mul(price)
		impactFromSize := notional.Div(liq)
		if impactFromSize.GreaterThan(priceImpact) {
			priceImpact = impactFromSize
		}
	}
	if priceImpact.GreaterThan(decimal.NewFromInt(1)) {
		priceImpact = decimal.NewFromInt(1)
	}

	return Quote{Price: effectivePrice, AmountOut: amountOut, PriceImpact: priceImpact}, nil
}

func (m *Mock) Liquidity(ctx context.Context, pair types.Pair) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.liquidity[pairKey(pair)], nil
}

func (m *Mock) BuildSwap(ctx context.Context, pair types.Pair, dir SwapDirection, amountIn, minOut decimal.Decimal, recipient string, deadline int64) (any, error) {
	return map[string]any{
		"venue":     m.name,
		"pair":      pairKey(pair),
		"direction": dir,
		"amountIn":  amountIn.String(),
		"minOut":    minOut.String(),
		"recipient": recipient,
		"deadline":  deadline,
	}, nil
}
