package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainarb/core/internal/types"
)

func burstOpp(id string) types.Opportunity {
	return types.Opportunity{
		ID:                id,
		Kind:              types.KindCrossExchange,
		Chain:             "ethereum",
		DetectedAt:        time.Now(),
		Path:              []string{"WETH", "USDC"},
		Venues:            []string{"venueA", "venueB"},
		AmountIn:          decimal.NewFromInt(1),
		ExpectedAmountOut: decimal.NewFromInt(2000),
		GrossProfitUSD:    decimal.NewFromInt(20),
		NetProfitUSD:      decimal.NewFromInt(20),
		LiquidityUSD:      decimal.NewFromInt(50_000),
		Priority:          5,
		State:             types.StatePending,
	}
}

// TestShutdownSafetyProperty checks spec.md §8's "Shutdown safety"
// invariant across randomized stop timings: after Stop() returns, no
// drain worker is still executing and no queue is still producing.
// Repeating Start/burst/Stop at varied delays exercises the race rather
// than relying on one fixed timing.
func TestShutdownSafetyProperty(t *testing.T) {
	delays := []time.Duration{0, time.Millisecond, 5 * time.Millisecond, 20 * time.Millisecond}

	for _, delay := range delays {
		orch, _ := buildTestOrchestrator(t)
		ctx := context.Background()
		require.NoError(t, orch.Start(ctx))

		for i := 0; i < 20; i++ {
			select {
			case orch.RawChannel() <- burstOpp(burstID(i)):
			default:
			}
		}

		time.Sleep(delay)
		require.NoError(t, orch.Stop(context.Background()))

		historyAtStop := len(orch.exec.History())
		time.Sleep(50 * time.Millisecond)

		assert.Equal(t, historyAtStop, len(orch.exec.History()),
			"delay %s: no execution may complete after Stop returns", delay)
		assert.Equal(t, 0, orch.activeWorkers, "delay %s: no worker may still be executing after Stop returns", delay)
		assert.False(t, orch.Health().Ready, "delay %s: readiness must be cleared by Stop", delay)
	}
}

func burstID(i int) string {
	return "burst-" + string(rune('a'+i))
}
