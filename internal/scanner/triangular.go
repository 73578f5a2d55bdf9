package scanner

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainarb/core/internal/types"
)

// triangularLoop implements spec.md §4.2's triangular strategy: for each
// configured 3(+)-cycle A->B->C->A on a single venue, simulate each hop
// with that venue's quote and fee, and synthesize an Opportunity if the
// round-trip multiplier clears 1+threshold.
func (s *Scanner) triangularLoop(ctx context.Context) {
	for _, cycle := range s.cfg.TriangularCycles {
		if len(cycle) < 3 {
			continue
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		for venueName, vc := range s.cfg.Venues {
			opp, ok := s.simulateCycle(ctx, cycle, venueName, vc)
			if ok {
				push(s.out, opp)
			}
		}
	}
}

func (s *Scanner) simulateCycle(ctx context.Context, cycle []string, venueName string, vc VenueConfig) (types.Opportunity, bool) {
	amount := decimal.NewFromInt(1)
	startAmount := amount

	venues := make([]string, 0, len(cycle))
	minLiquidity := decimal.Zero
	for i := 0; i < len(cycle); i++ {
		from := cycle[i]
		to := cycle[(i+1)%len(cycle)]
		pair := types.Pair{TokenA: from, TokenB: to}

		q, err := s.quote(ctx, vc.Adapter, pair, amount)
		if err != nil {
			s.log.Debug().Err(err).Str("venue", venueName).Strs("cycle", cycle).Msg("triangular hop quote failed")
			return types.Opportunity{}, false
		}

		hopLiquidity := s.liquidity(ctx, vc.Adapter, pair)
		if i == 0 || hopLiquidity.LessThan(minLiquidity) {
			minLiquidity = hopLiquidity
		}

		fee := q.AmountOut.Mul(vc.Fees.Taker)
		amount = q.AmountOut.Sub(fee)
		venues = append(venues, venueName)
	}

	multiplier := amount.Div(startAmount)
	threshold := decimal.NewFromInt(1).Add(s.cfg.MinProfitPct)
	if multiplier.LessThanOrEqual(threshold) {
		return types.Opportunity{}, false
	}

	grossProfit := amount.Sub(startAmount)
	path := append([]string(nil), cycle...)
	path = append(path, cycle[0])

	return types.Opportunity{
		ID:                s.newID(),
		Kind:              types.KindTriangular,
		Chain:             s.cfg.Chain,
		DetectedAt:        time.Now(),
		Path:              path,
		Venues:            venues,
		AmountIn:          startAmount,
		ExpectedAmountOut: amount,
		GrossProfitUSD:    grossProfit,
		GasCostUSD:        decimal.Zero,
		NetProfitUSD:      grossProfit,
		PriceImpact:       decimal.Zero,
		LiquidityUSD:      minLiquidity,
		State:             types.StatePending,
	}, true
}
