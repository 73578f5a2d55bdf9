package risk

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainarb/core/internal/types"
)

type fixedOracle struct {
	value decimal.Decimal
	err   error
}

func (f fixedOracle) USDValue(token string, amount decimal.Decimal) (decimal.Decimal, error) {
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.value, nil
}

func testLimits() types.PortfolioLimits {
	return types.PortfolioLimits{
		MaxSingleTradeUSD:   decimal.NewFromInt(1000),
		MaxDailyVolumeUSD:   map[string]decimal.Decimal{"ethereum": decimal.NewFromInt(5000)},
		MaxGasCostPct:       decimal.NewFromFloat(0.2),
		MaxConcurrentTrades: 2,
		MinLiquidityRatio:   decimal.NewFromFloat(0.1),
	}
}

func testOpp(riskScore float64) types.Opportunity {
	return types.Opportunity{
		ID:         "opp-1",
		Kind:       types.KindCrossExchange,
		Chain:      "ethereum",
		Path:       []string{"WETH", "USDC"},
		Venues:     []string{"a", "b"},
		AmountIn:   decimal.NewFromInt(1),
		RiskScore:  riskScore,
		DetectedAt: time.Now(),
	}
}

func TestValidateAcceptsWithinLimits(t *testing.T) {
	m := New(testLimits(), types.NewBlacklists(nil, nil), fixedOracle{value: decimal.NewFromInt(100)})
	accept, assessment := m.Validate(testOpp(10), false)
	assert.True(t, accept)
	assert.Equal(t, LevelLow, assessment.Level)
}

func TestValidateRejectsCriticalRisk(t *testing.T) {
	m := New(testLimits(), types.NewBlacklists(nil, nil), fixedOracle{value: decimal.NewFromInt(100)})
	accept, assessment := m.Validate(testOpp(80), false)
	assert.False(t, accept)
	assert.Equal(t, LevelCritical, assessment.Level)
	assert.Contains(t, assessment.Violations, "risk score is critical")
}

func TestValidateRejectsOverSingleTradeLimit(t *testing.T) {
	m := New(testLimits(), types.NewBlacklists(nil, nil), fixedOracle{value: decimal.NewFromInt(5000)})
	accept, assessment := m.Validate(testOpp(10), false)
	assert.False(t, accept)
	assert.Contains(t, assessment.Violations, "amount exceeds max single trade limit")
}

func TestValidateRejectsBlacklistedVenue(t *testing.T) {
	bl := types.NewBlacklists(nil, []string{"b"})
	m := New(testLimits(), bl, fixedOracle{value: decimal.NewFromInt(100)})
	accept, _ := m.Validate(testOpp(10), false)
	assert.False(t, accept)
}

func TestValidateFailsClosedOnOracleError(t *testing.T) {
	m := New(testLimits(), types.NewBlacklists(nil, nil), fixedOracle{err: errors.New("oracle down")})
	accept, assessment := m.Validate(testOpp(10), false)
	assert.False(t, accept)
	assert.Contains(t, assessment.Violations[0], "USD conversion unavailable")
}

func TestValidateDegradedChainRejectsRegardlessOfRisk(t *testing.T) {
	m := New(testLimits(), types.NewBlacklists(nil, nil), fixedOracle{value: decimal.NewFromInt(100)})
	m.SetChainDegraded("ethereum", true)
	accept, assessment := m.Validate(testOpp(5), false)
	assert.False(t, accept)
	assert.Contains(t, assessment.Violations, "chain is degraded")
}

func TestSkipSoftGatesStillEnforcesBlacklist(t *testing.T) {
	bl := types.NewBlacklists(nil, []string{"b"})
	m := New(testLimits(), bl, fixedOracle{value: decimal.NewFromInt(100)})
	accept, _ := m.Validate(testOpp(10), true)
	assert.False(t, accept, "Force path must still honor blacklists")
}

func TestConcurrentTradesGate(t *testing.T) {
	m := New(testLimits(), types.NewBlacklists(nil, nil), fixedOracle{value: decimal.NewFromInt(100)})
	m.BeginExecution(testOpp(10))
	m.BeginExecution(testOpp(10))

	accept, assessment := m.Validate(testOpp(10), false)
	assert.False(t, accept)
	assert.Contains(t, assessment.Violations, "max concurrent trades reached")
}

func TestRecordUpdatesSuccessRateEWMA(t *testing.T) {
	m := New(testLimits(), types.NewBlacklists(nil, nil), fixedOracle{value: decimal.NewFromInt(100)})
	assert.Equal(t, 0.5, m.SuccessRate("ethereum", types.KindCrossExchange))

	m.BeginExecution(testOpp(10))
	m.Record("ethereum", types.KindCrossExchange, types.ExecutionResult{Success: true})
	rate := m.SuccessRate("ethereum", types.KindCrossExchange)
	assert.InDelta(t, 0.55, rate, 0.001) // 0.1*1 + 0.9*0.5
}

func TestResetClearsDailyCountersOnly(t *testing.T) {
	limits := testLimits()
	limits.MaxSingleTradeUSD = decimal.NewFromInt(10_000) // isolate the daily-volume gate from the single-trade gate
	m := New(limits, types.NewBlacklists(nil, nil), fixedOracle{value: decimal.NewFromInt(4999)})
	m.BeginExecution(testOpp(10))
	m.Record("ethereum", types.KindCrossExchange, types.ExecutionResult{Success: true})

	accept, assessment := m.Validate(testOpp(10), false)
	require.False(t, accept)
	assert.Contains(t, assessment.Violations, "amount would exceed max daily volume for chain")

	m.Reset()
	accept, _ = m.Validate(testOpp(10), false)
	assert.True(t, accept)
	assert.NotEqual(t, 0.5, m.SuccessRate("ethereum", types.KindCrossExchange), "success rate must survive Reset")
}
