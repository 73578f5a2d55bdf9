package scanner

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainarb/core/internal/types"
)

// crossExchangeLoop implements spec.md §4.2's cross-exchange strategy:
// for each configured pair, quote every venue in parallel; if at least two
// venues answer, take the cheapest buy and the most expensive sell; if
// they differ and the spread clears minProfitPct, synthesize an
// Opportunity. Grounded on arbitrage-agent's calculateSpreads/
// calculateOpportunity (argmin/argmax across a price cache, fee-adjusted
// spread, minimum-spread gate) generalized from float64 exchange prices to
// decimal venue quotes.
func (s *Scanner) crossExchangeLoop(ctx context.Context) {
	probeAmount := decimal.NewFromInt(1) // unit probe; sizing happens downstream in the aggregator/risk stages

	for _, pair := range s.cfg.Pairs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		quotes := s.quoteAllVenues(ctx, pair, probeAmount)
		if len(quotes) < 2 {
			continue
		}

		var bestBuyVenue, bestSellVenue string
		var bestBuyPrice, bestSellPrice decimal.Decimal
		first := true
		for name, q := range quotes {
			if first {
				bestBuyVenue, bestSellVenue = name, name
				bestBuyPrice, bestSellPrice = q.Price, q.Price
				first = false
				continue
			}
			if q.Price.LessThan(bestBuyPrice) {
				bestBuyPrice, bestBuyVenue = q.Price, name
			}
			if q.Price.GreaterThan(bestSellPrice) {
				bestSellPrice, bestSellVenue = q.Price, name
			}
		}

		if bestBuyVenue == bestSellVenue || bestBuyPrice.IsZero() {
			continue
		}

		spreadPct := bestSellPrice.Sub(bestBuyPrice).Div(bestBuyPrice)
		if spreadPct.LessThanOrEqual(s.cfg.MinProfitPct) {
			continue
		}

		buyVC := s.cfg.Venues[bestBuyVenue]
		sellVC := s.cfg.Venues[bestSellVenue]

		grossOut := probeAmount.Mul(bestSellPrice)
		buyFee := probeAmount.Mul(bestBuyPrice).Mul(buyVC.Fees.Taker)
		sellFee := grossOut.Mul(sellVC.Fees.Taker)
		// Fee-adjusted profit before gas; GasCostUSD is filled in (and
		// NetProfitUSD recomputed) by the aggregator's enrichment step, so
		// GrossProfitUSD here already nets out venue fees to keep
		// Opportunity.Validate's invariant satisfied at emission time.
		grossProfit := grossOut.Sub(probeAmount.Mul(bestBuyPrice)).Sub(buyFee).Sub(sellFee)

		liq := s.liquidity(ctx, buyVC.Adapter, pair)
		if sellLiq := s.liquidity(ctx, sellVC.Adapter, pair); sellLiq.LessThan(liq) {
			liq = sellLiq
		}

		opp := types.Opportunity{
			ID:                s.newID(),
			Kind:              types.KindCrossExchange,
			Chain:             s.cfg.Chain,
			DetectedAt:        time.Now(),
			Path:              []string{pair.TokenA, pair.TokenB, pair.TokenA},
			Venues:            []string{bestBuyVenue, bestSellVenue},
			AmountIn:          probeAmount,
			ExpectedAmountOut: grossOut,
			GrossProfitUSD:    grossProfit,
			GasCostUSD:        decimal.Zero, // filled in by the aggregator's gas estimate
			NetProfitUSD:      grossProfit,
			PriceImpact:       quotes[bestSellVenue].PriceImpact,
			LiquidityUSD:      liq,
			State:             types.StatePending,
		}

		push(s.out, opp)
	}
}
