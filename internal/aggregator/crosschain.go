package aggregator

import (
	"github.com/shopspring/decimal"

	"github.com/chainarb/core/internal/types"
)

// CrossChainOpportunity is a purely informational finding: the same token
// pair priced with an average delta >1% across two chains. It is never
// executable by the core — spec.md §4.3 is explicit that this analyzer is
// background and informational only.
type CrossChainOpportunity struct {
	TokenA, TokenB       string
	ChainA, ChainB       string
	AvgPriceA, AvgPriceB decimal.Decimal
	DeltaPct             decimal.Decimal
}

// AnalyzeCrossChain groups recent opportunities by token pair and reports
// pairs whose average price differs by more than 1% across two chains.
// It never mutates or filters the input opportunities used elsewhere in
// the pipeline.
func AnalyzeCrossChain(recent []types.Opportunity) []CrossChainOpportunity {
	type key struct{ a, b string }
	sums := make(map[key]map[string]decimal.Decimal)
	counts := make(map[key]map[string]int)

	for _, opp := range recent {
		if len(opp.Path) < 2 {
			continue
		}
		k := key{a: opp.Path[0], b: opp.Path[1]}
		if sums[k] == nil {
			sums[k] = make(map[string]decimal.Decimal)
			counts[k] = make(map[string]int)
		}
		price := decimal.Zero
		if opp.AmountIn.IsPositive() {
			price = opp.ExpectedAmountOut.Div(opp.AmountIn)
		}
		sums[k][opp.Chain] = sums[k][opp.Chain].Add(price)
		counts[k][opp.Chain]++
	}

	var out []CrossChainOpportunity
	threshold := decimal.NewFromFloat(0.01)
	for k, chainSums := range sums {
		chains := make([]string, 0, len(chainSums))
		for chain := range chainSums {
			chains = append(chains, chain)
		}
		for i := 0; i < len(chains); i++ {
			for j := i + 1; j < len(chains); j++ {
				chainA, chainB := chains[i], chains[j]
				avgA := chainSums[chainA].Div(decimal.NewFromInt(int64(counts[k][chainA])))
				avgB := chainSums[chainB].Div(decimal.NewFromInt(int64(counts[k][chainB])))
				if avgA.IsZero() {
					continue
				}
				delta := avgB.Sub(avgA).Div(avgA).Abs()
				if delta.GreaterThan(threshold) {
					out = append(out, CrossChainOpportunity{
						TokenA: k.a, TokenB: k.b,
						ChainA: chainA, ChainB: chainB,
						AvgPriceA: avgA, AvgPriceB: avgB,
						DeltaPct: delta,
					})
				}
			}
		}
	}
	return out
}
