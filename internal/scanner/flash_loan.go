package scanner

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainarb/core/internal/types"
)

// flashLoanLoop implements spec.md §4.2's flash-loan strategy: for each
// eligible pair, find the best buy/sell venues (same argmin/argmax as
// cross-exchange), pick the cheapest loan provider with sufficient
// liquidity, size the loan to min(providerMax*capFraction, configuredCap),
// and synthesize a FlashLoan opportunity whose Loan.FeeUSD is netted out
// of NetProfitUSD (GrossProfitUSD stays pre-loan-fee) so
// Opportunity.Validate's invariant holds.
func (s *Scanner) flashLoanLoop(ctx context.Context) {
	for _, pair := range s.cfg.FlashLoanPairs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		probeAmount := decimal.NewFromInt(1)
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

		provider, err := s.cfg.LoanCatalog.Cheapest(s.cfg.FlashLoanCap)
		if err != nil {
			s.log.Debug().Err(err).Msg("no eligible flash-loan provider")
			continue
		}

		loanAmount := provider.MaxLiquidity.Mul(s.cfg.LoanCapFraction)
		if loanAmount.GreaterThan(s.cfg.FlashLoanCap) {
			loanAmount = s.cfg.FlashLoanCap
		}

		buyVC := s.cfg.Venues[bestBuyVenue]
		sellVC := s.cfg.Venues[bestSellVenue]

		grossOut := loanAmount.Mul(bestSellPrice)
		buyFee := loanAmount.Mul(bestBuyPrice).Mul(buyVC.Fees.Taker)
		sellFee := grossOut.Mul(sellVC.Fees.Taker)
		loanFee := loanAmount.Mul(bestBuyPrice).Mul(provider.FeeFraction())

		spreadProfit := grossOut.Sub(loanAmount.Mul(bestBuyPrice)).Sub(buyFee).Sub(sellFee)
		if spreadProfit.LessThanOrEqual(loanFee) {
			continue
		}
		grossProfit := spreadProfit // gross is pre-loan-fee, pre-gas
		netProfit := grossProfit.Sub(loanFee)

		liq := s.liquidity(ctx, buyVC.Adapter, pair)
		if sellLiq := s.liquidity(ctx, sellVC.Adapter, pair); sellLiq.LessThan(liq) {
			liq = sellLiq
		}

		opp := types.Opportunity{
			ID:                s.newID(),
			Kind:              types.KindFlashLoan,
			Chain:             s.cfg.Chain,
			DetectedAt:        time.Now(),
			Path:              []string{pair.TokenA, pair.TokenB, pair.TokenA},
			Venues:            []string{bestBuyVenue, bestSellVenue},
			AmountIn:          loanAmount,
			ExpectedAmountOut: grossOut,
			GrossProfitUSD:    grossProfit,
			GasCostUSD:        decimal.Zero,
			NetProfitUSD:      netProfit,
			PriceImpact:       quotes[bestSellVenue].PriceImpact,
			LiquidityUSD:      liq,
			Loan: &types.Loan{
				ProviderID: provider.ID,
				Amount:     loanAmount,
				FeeUSD:     loanFee,
			},
			State: types.StatePending,
		}

		push(s.out, opp)
	}
}
