// Package aggregator implements the Opportunity Aggregator (spec.md §4.3,
// C6): validates raw scanner output against the profitability/liquidity
// gates, enriches survivors with a weighted six-factor risk score,
// priority and confidence, then sorts and deduplicates by fingerprint.
// The risk-weighting and confidence-adjustment style is grounded on an
// arbitrage-agent's calculateOpportunityScore/calculateOpportunityConfidence
// — a weighted combination of normalized 0-1 factors with explicit
// risk/latency/time penalties — generalized from that agent's five ad
// hoc multipliers to spec.md's six named, equally-documented factors and
// fixed weights.
package aggregator

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainarb/core/internal/types"
)

// Gates are the validation thresholds every candidate must clear.
type Gates struct {
	MinProfitUSD      decimal.Decimal
	MaxGasCostFraction decimal.Decimal
	MinLiquidityUSD   decimal.Decimal
	MaxPriceImpact    decimal.Decimal
	OpportunityTTL    time.Duration
}

// SuccessRateLookup reports the historical success rate for (chain, kind),
// used to temper Confidence. Implemented by internal/risk's EWMA estimator.
type SuccessRateLookup interface {
	SuccessRate(chain string, kind types.Kind) float64 // 0-1, defaults to 0.5 when unknown
}

// GasEstimator fills in GasCostUSD for a raw opportunity before the gas
// gate and NetProfitUSD recomputation. Kept as a narrow collaborator
// rather than a chain adapter dependency so the aggregator stays testable
// without a live chain.
type GasEstimator interface {
	EstimateGasUSD(opp types.Opportunity) (decimal.Decimal, error)
}

// Aggregator is the stateless (save for its collaborators) C6 component.
type Aggregator struct {
	gates        Gates
	successRates SuccessRateLookup
	gas          GasEstimator
	now          func() time.Time
}

// New builds an Aggregator. now defaults to time.Now; tests may override
// it for deterministic TTL checks.
func New(gates Gates, successRates SuccessRateLookup, gas GasEstimator) *Aggregator {
	return &Aggregator{gates: gates, successRates: successRates, gas: gas, now: time.Now}
}

// Process validates, enriches, sorts and deduplicates raw opportunities.
// It does not execute anything — spec.md §4.3 calls this "pure-ish".
func (a *Aggregator) Process(raw []types.Opportunity) []types.Opportunity {
	now := a.now()

	validated := make([]types.Opportunity, 0, len(raw))
	for _, opp := range raw {
		enriched, ok := a.validateAndEnrich(opp, now)
		if !ok {
			continue
		}
		validated = append(validated, enriched)
	}

	validated = dedupe(validated)

	sort.SliceStable(validated, func(i, j int) bool {
		if validated[i].Priority != validated[j].Priority {
			return validated[i].Priority > validated[j].Priority
		}
		return validated[i].NetProfitUSD.GreaterThan(validated[j].NetProfitUSD)
	})

	return validated
}

func (a *Aggregator) validateAndEnrich(opp types.Opportunity, now time.Time) (types.Opportunity, bool) {
	if now.Sub(opp.DetectedAt) > a.gates.OpportunityTTL {
		return types.Opportunity{}, false
	}

	if a.gas != nil {
		gasCost, err := a.gas.EstimateGasUSD(opp)
		if err == nil {
			opp.GasCostUSD = gasCost
			loanFee := decimal.Zero
			if opp.Loan != nil {
				loanFee = opp.Loan.FeeUSD
			}
			opp.NetProfitUSD = opp.GrossProfitUSD.Sub(opp.GasCostUSD).Sub(loanFee)
		}
	}

	if opp.NetProfitUSD.LessThan(a.gates.MinProfitUSD) {
		return types.Opportunity{}, false
	}
	if !opp.GrossProfitUSD.IsZero() {
		gasFraction := opp.GasCostUSD.Div(opp.GrossProfitUSD)
		if gasFraction.GreaterThan(a.gates.MaxGasCostFraction) {
			return types.Opportunity{}, false
		}
	}
	if opp.LiquidityUSD.LessThan(a.gates.MinLiquidityUSD) {
		return types.Opportunity{}, false
	}
	if opp.PriceImpact.GreaterThan(a.gates.MaxPriceImpact) {
		return types.Opportunity{}, false
	}

	factors := computeFactors(opp)
	opp.RiskScore = factors.weightedRiskScore()

	successRate := 0.5
	if a.successRates != nil {
		successRate = a.successRates.SuccessRate(opp.Chain, opp.Kind)
	}
	opp.Confidence = clip(0, 100, 100-factors.sumTimesTenth()) * successRate
	opp.Priority = priorityFor(factors.profitScore, opp.RiskScore, opp.Confidence)

	return opp, true
}

func dedupe(opps []types.Opportunity) []types.Opportunity {
	best := make(map[string]types.Opportunity, len(opps))
	order := make([]string, 0, len(opps))
	for _, opp := range opps {
		fp := opp.Fingerprint()
		existing, ok := best[fp]
		if !ok {
			best[fp] = opp
			order = append(order, fp)
			continue
		}
		if opp.NetProfitUSD.GreaterThan(existing.NetProfitUSD) ||
			(opp.NetProfitUSD.Equal(existing.NetProfitUSD) && opp.DetectedAt.After(existing.DetectedAt)) {
			best[fp] = opp
		}
	}

	out := make([]types.Opportunity, 0, len(order))
	for _, fp := range order {
		out = append(out, best[fp])
	}
	return out
}

func clip(lo, hi, v float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func priorityFor(profitScore, riskScore, confidence float64) int {
	raw := profitScore * (1 - riskScore/100) * (confidence / 100) * 10
	p := int(raw + 0.5) // round half up
	if p < 1 {
		p = 1
	}
	if p > 10 {
		p = 10
	}
	return p
}
