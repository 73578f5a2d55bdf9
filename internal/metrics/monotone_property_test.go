package metrics

import (
	"math/rand"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/chainarb/core/internal/errs"
	"github.com/chainarb/core/internal/types"
)

// TestMonotoneHistoryProperty checks spec.md §8's "Monotone history"
// invariant: the cumulative counters a Recorder exposes (attempts,
// successes, failures, realized profit) never decrease, across any
// sequence of RecordAttempt/RecordResult calls.
func TestMonotoneHistoryProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	r := newTestRecorder()

	const kind = types.KindCrossExchange
	const chain = "ethereum"

	var prevAttempts, prevSuccesses, prevFailures, prevProfit float64

	for i := 0; i < 200; i++ {
		r.RecordAttempt(kind, chain)
		success := rng.Intn(2) == 0

		result := types.ExecutionResult{
			Success:    success,
			Elapsed:    time.Duration(rng.Intn(1000)) * time.Millisecond,
			FinalState: types.StateFailed,
		}
		if success {
			result.FinalState = types.StateSuccess
			result.RealizedProfitUSD = decimal.NewFromInt(int64(rng.Intn(100)))
		} else {
			result.Error = &errs.Timeout{Stage: "execution"}
		}
		r.RecordResult(result, kind, chain)

		attempts := testutil.ToFloat64(r.attempts.WithLabelValues(string(kind)))
		successes := testutil.ToFloat64(r.successes.WithLabelValues(string(kind), chain))
		failures := testutil.ToFloat64(r.failures.WithLabelValues(string(kind), chain, string(ReasonTimeout)))
		profit := testutil.ToFloat64(r.profitUSD.WithLabelValues(string(kind)))

		assert.GreaterOrEqual(t, attempts, prevAttempts, "iteration %d: attempts must never decrease", i)
		assert.GreaterOrEqual(t, successes, prevSuccesses, "iteration %d: successes must never decrease", i)
		assert.GreaterOrEqual(t, failures, prevFailures, "iteration %d: failures must never decrease", i)
		assert.GreaterOrEqual(t, profit, prevProfit, "iteration %d: realized profit must never decrease", i)

		prevAttempts, prevSuccesses, prevFailures, prevProfit = attempts, successes, failures, profit
	}

	assert.Equal(t, 200.0, prevAttempts)
	assert.Equal(t, prevSuccesses+prevFailures, prevAttempts)
}
