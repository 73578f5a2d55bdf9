package aggregator

import (
	"math"

	"github.com/chainarb/core/internal/types"
)

// factors holds the six normalized (0-100) risk inputs from spec.md §4.3
// and their fixed weights, adapted from a weighted-multiplier score
// (profit/liquidity/execution-risk/latency/time) generalized to six
// named, independently-weighted factors instead of five sequential
// multipliers.
type factors struct {
	profit    float64 // 0-100 risk contribution, higher = riskier (inverse of profitScore)
	liquidity float64
	gas       float64
	market    float64
	technical float64
	execution float64

	profitScore float64 // 0-1 profit component feeding priority, distinct from the risk factor above
}

var weights = struct {
	profit, liquidity, gas, market, technical, execution float64
}{0.25, 0.20, 0.15, 0.15, 0.15, 0.10}

// weightedRiskScore combines the six factors (each already expressed as a
// 0-100 *risk* contribution, higher = riskier) into the opportunity's
// overall RiskScore per spec.md §4.3.
func (f factors) weightedRiskScore() float64 {
	score := f.profit*weights.profit +
		f.liquidity*weights.liquidity +
		f.gas*weights.gas +
		f.market*weights.market +
		f.technical*weights.technical +
		f.execution*weights.execution
	return clip(0, 100, score)
}

// sumTimesTenth feeds spec.md §4.3's confidence formula:
// clip(0..100, 100 - Σfactor*0.1).
func (f factors) sumTimesTenth() float64 {
	sum := f.profit + f.liquidity + f.gas + f.market + f.technical + f.execution
	return sum * 0.1
}

// computeFactors derives the six normalized risk factors for opp. Each
// factor is 0 (no risk contribution) to 100 (maximum risk contribution);
// the mapping functions follow a normalize-then-penalize style
// (sigmoid/log-scale curves, not raw linear ratios).
func computeFactors(opp types.Opportunity) factors {
	profitPct := 0.0
	if opp.AmountIn.IsPositive() {
		amountInUSD := opp.AmountIn // proxy when a dedicated USD conversion isn't wired in; callers may pre-convert before Process
		_ = amountInUSD
		netF, _ := opp.NetProfitUSD.Float64()
		grossF, _ := opp.GrossProfitUSD.Float64()
		if grossF != 0 {
			profitPct = netF / grossF
		}
	}
	// profitScore: sigmoid favoring higher profit, same curve shape as a
	// profitScore := 1 - exp(-profitPct).
	profitScore := 1 - math.Exp(-profitPct)
	profitScore = clip(0, 1, profitScore)
	profitRisk := (1 - profitScore) * 100

	liquidityF, _ := opp.LiquidityUSD.Float64()
	liquidityScore := 0.0
	if liquidityF > 0 {
		logVol := math.Log10(liquidityF + 1)
		liquidityScore = (logVol - 4.0) / 4.0
		liquidityScore = clip(0, 1, liquidityScore)
	}
	liquidityRisk := (1 - liquidityScore) * 100

	gasRisk := 0.0
	grossF, _ := opp.GrossProfitUSD.Float64()
	if grossF > 0 {
		gasF, _ := opp.GasCostUSD.Float64()
		gasRisk = clip(0, 100, (gasF/grossF)*100)
	}

	impactF, _ := opp.PriceImpact.Float64()
	marketRisk := clip(0, 100, impactF*100)

	// technical: path length beyond a simple two-hop cross-exchange adds
	// execution-surface risk (more hops, more can go wrong), a continuous
	// form of a "2+ risk factors -> extra penalty" idea.
	hops := float64(len(opp.Venues))
	technicalRisk := clip(0, 100, (hops-1)*20)

	executionRisk := 0.0
	if opp.Kind == types.KindFlashLoan {
		executionRisk = 40 // atomic, but higher blast radius on revert
	} else if opp.Kind == types.KindTriangular {
		executionRisk = 25
	} else {
		executionRisk = 10
	}

	return factors{
		profit:      profitRisk,
		liquidity:   liquidityRisk,
		gas:         gasRisk,
		market:      marketRisk,
		technical:   technicalRisk,
		execution:   executionRisk,
		profitScore: profitScore,
	}
}
