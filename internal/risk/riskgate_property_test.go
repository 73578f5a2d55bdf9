package risk

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainarb/core/internal/types"
)

// amountAsUSDOracle treats the opportunity's AmountIn as already
// denominated in USD, so concurrent Validate calls can be driven toward
// a known, exact daily-volume cap.
type amountAsUSDOracle struct{}

func (amountAsUSDOracle) USDValue(token string, amount decimal.Decimal) (decimal.Decimal, error) {
	return amount, nil
}

// TestRiskGateProperty checks spec.md §8's "Risk gate" invariant under
// concurrency: for every opportunity transitioning to Executing, the sum
// daily_volume[chain] + amount_in_usd must be <= max_daily_volume_usd[chain]
// immediately after the transition. Many goroutines race to Validate
// trades against the same chain and cap; the reservation Validate
// performs must serialize them so the committed total never overshoots.
func TestRiskGateProperty(t *testing.T) {
	const cap = 1000
	const perTrade = 100
	const workers = 50

	limits := types.PortfolioLimits{
		MaxSingleTradeUSD:   decimal.NewFromInt(perTrade),
		MaxDailyVolumeUSD:   map[string]decimal.Decimal{"ethereum": decimal.NewFromInt(cap)},
		MaxGasCostPct:       decimal.NewFromFloat(0.9),
		MaxConcurrentTrades: workers, // isolate the daily-volume gate from the concurrency gate
		MinLiquidityRatio:   decimal.Zero,
	}
	m := New(limits, types.NewBlacklists(nil, nil), amountAsUSDOracle{})

	opp := types.Opportunity{
		ID:        "gate-prop",
		Kind:      types.KindCrossExchange,
		Chain:     "ethereum",
		Path:      []string{"WETH"},
		Venues:    []string{"a", "b"},
		AmountIn:  decimal.NewFromInt(perTrade),
		RiskScore: 10,
	}

	var mu sync.Mutex
	accepted := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			accept, _ := m.Validate(opp, false)
			if accept {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	final := m.daily.Get("ethereum", m.today())
	require.True(t, final.LessThanOrEqual(decimal.NewFromInt(cap)),
		"committed daily volume %s must never exceed the %d cap", final, cap)
	assert.True(t, final.Equal(decimal.NewFromInt(int64(accepted*perTrade))),
		"committed volume must equal exactly the accepted trades' reservations, no lost or duplicated updates")
	assert.LessOrEqual(t, accepted, cap/perTrade)
}
