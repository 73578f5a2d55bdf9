package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainarb/core/internal/aggregator"
	"github.com/chainarb/core/internal/chainadapter"
	"github.com/chainarb/core/internal/chainguard"
	"github.com/chainarb/core/internal/executor"
	"github.com/chainarb/core/internal/notify"
	"github.com/chainarb/core/internal/pricecache"
	"github.com/chainarb/core/internal/queue"
	"github.com/chainarb/core/internal/risk"
	"github.com/chainarb/core/internal/scanner"
	"github.com/chainarb/core/internal/types"
	"github.com/chainarb/core/internal/venue"
)

type fixedOracle struct{ value decimal.Decimal }

func (f fixedOracle) USDValue(token string, amount decimal.Decimal) (decimal.Decimal, error) {
	return f.value, nil
}

type countingRecorder struct{ attempts, results int }

func (r *countingRecorder) RecordAttempt(kind types.Kind, chain string) { r.attempts++ }
func (r *countingRecorder) RecordResult(result types.ExecutionResult, kind types.Kind, chain string) {
	r.results++
}

func buildTestOrchestrator(t *testing.T) (*Orchestrator, *chainadapter.Mock) {
	t.Helper()

	chainAdapter := chainadapter.NewMock()
	chainAdapter.SetBalance("WETH", decimal.NewFromInt(100))

	fees := venue.DefaultFeeSchedule()
	venueA := venue.NewMock("venueA", fees)
	venueB := venue.NewMock("venueB", fees)
	pair := types.Pair{TokenA: "WETH", TokenB: "USDC"}
	venueA.SetPrice(pair, decimal.NewFromInt(2000))
	venueA.SetLiquidity(pair, decimal.NewFromInt(50_000))
	venueB.SetPrice(pair, decimal.NewFromInt(2100))
	venueB.SetLiquidity(pair, decimal.NewFromInt(50_000))

	cache := pricecache.New(2 * time.Minute)
	guard := chainguard.NewRegistry(chainguard.DefaultSettings(), nil)

	agg := aggregator.New(aggregator.Gates{
		MinProfitUSD:       decimal.NewFromInt(1),
		MaxGasCostFraction: decimal.NewFromFloat(0.9),
		MinLiquidityUSD:    decimal.NewFromInt(1),
		MaxPriceImpact:     decimal.NewFromFloat(0.5),
		OpportunityTTL:     time.Minute,
	}, nil, nil)

	riskMgr := risk.New(types.PortfolioLimits{
		MaxSingleTradeUSD:   decimal.NewFromInt(1_000_000),
		MaxDailyVolumeUSD:   map[string]decimal.Decimal{"ethereum": decimal.NewFromInt(1_000_000)},
		MaxGasCostPct:       decimal.NewFromFloat(0.9),
		MaxConcurrentTrades: 5,
		MinLiquidityRatio:   decimal.Zero,
	}, types.NewBlacklists(nil, nil), fixedOracle{value: decimal.NewFromInt(10)})

	queues := queue.New(queue.Config{
		Capacity: map[types.Kind]int{types.KindCrossExchange: 32},
		Weight:   map[types.Kind]int{types.KindCrossExchange: 1},
	})

	recorder := &countingRecorder{}
	hub := notify.NewHub(time.Second, zerolog.Nop())

	coordinator := executor.New(
		executor.DefaultConfig(),
		map[string]chainadapter.Adapter{"ethereum": chainAdapter},
		map[string]venue.Adapter{"venueA": venueA, "venueB": venueB},
		map[string]string{"ethereum": "ETH"},
		fixedOracle{value: decimal.NewFromInt(10)},
		riskMgr,
		recorder,
		hub,
		zerolog.Nop(),
	)

	cfg := DefaultConfig()
	cfg.DrainWorkers = 1
	cfg.RawBufferSize = 64

	orch := New(cfg, map[string]ChainHandle{
		"ethereum": {Adapter: chainAdapter},
	}, agg, riskMgr, queues, coordinator, zerolog.Nop())

	// scanners are built against orch.RawChannel(), which only exists once
	// the orchestrator itself has been constructed, mirroring the
	// construction order the real binary's main.go follows.
	sc := scanner.New(scanner.Config{
		Chain: "ethereum",
		Venues: map[string]scanner.VenueConfig{
			"venueA": {Adapter: venueA, Fees: fees},
			"venueB": {Adapter: venueB, Fees: fees},
		},
		Pairs:               []types.Pair{pair},
		MinProfitPct:        decimal.NewFromFloat(0.001),
		QuoteDeadline:       time.Second,
		EnableCrossExchange: true,
	}, cache, guard, orch.RawChannel(), zerolog.Nop())
	orch.chains["ethereum"] = ChainHandle{Adapter: chainAdapter, Scanners: []*scanner.Scanner{sc}}

	return orch, chainAdapter
}

func TestStartMarksReadyAndRunsPipeline(t *testing.T) {
	orch, _ := buildTestOrchestrator(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, orch.Start(ctx))
	defer func() { _ = orch.Stop(context.Background()) }()

	require.Eventually(t, func() bool {
		return orch.Health().Ready
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		h := orch.Health()
		return h.ChainHealthy["ethereum"]
	}, 2*time.Second, 20*time.Millisecond)
}

func TestStopWaitsForWorkersWithinGrace(t *testing.T) {
	orch, _ := buildTestOrchestrator(t)
	orch.cfg.ShutdownGrace = 500 * time.Millisecond

	ctx := context.Background()
	require.NoError(t, orch.Start(ctx))

	err := orch.Stop(ctx)
	require.NoError(t, err)
	assert.False(t, orch.Health().Ready)
}

func TestForceRejectsUnknownOpportunity(t *testing.T) {
	orch, _ := buildTestOrchestrator(t)
	ctx := context.Background()
	require.NoError(t, orch.Start(ctx))
	defer func() { _ = orch.Stop(context.Background()) }()

	_, err := orch.Force(ctx, "never-seen")
	require.Error(t, err)
}

func TestForceExecutesRememberedOpportunity(t *testing.T) {
	orch, _ := buildTestOrchestrator(t)
	opp := types.Opportunity{
		ID:                "forced-1",
		Kind:              types.KindCrossExchange,
		Chain:             "ethereum",
		DetectedAt:        time.Now(),
		Path:              []string{"WETH", "USDC"},
		Venues:            []string{"venueA", "venueB"},
		AmountIn:          decimal.NewFromInt(1),
		ExpectedAmountOut: decimal.NewFromInt(2000),
		GrossProfitUSD:    decimal.NewFromInt(50),
		NetProfitUSD:      decimal.NewFromInt(50),
		LiquidityUSD:      decimal.NewFromInt(50_000),
		RiskScore:         10,
		Priority:          5,
	}
	orch.rememberRecent(opp)

	ctx := context.Background()
	require.NoError(t, orch.Start(ctx))
	defer func() { _ = orch.Stop(context.Background()) }()

	result, err := orch.Force(ctx, "forced-1")
	require.NoError(t, err)
	assert.Equal(t, "forced-1", result.OpportunityID)
}

func TestChainDegradationMarksRiskAndHealth(t *testing.T) {
	orch, mockChain := buildTestOrchestrator(t)
	ctx := context.Background()
	require.NoError(t, orch.Start(ctx))
	defer func() { _ = orch.Stop(context.Background()) }()

	require.Eventually(t, func() bool {
		return orch.Health().ChainHealthy["ethereum"]
	}, 2*time.Second, 20*time.Millisecond)

	mockChain.SetHealthy(false)

	require.Eventually(t, func() bool {
		return !orch.Health().ChainHealthy["ethereum"]
	}, 2*time.Second, 20*time.Millisecond)
}
