package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/chainarb/core/internal/errs"
	"github.com/chainarb/core/internal/types"
)

func newTestRecorder() *Recorder {
	return NewRecorder(prometheus.NewRegistry())
}

func TestNormalizeFailureReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Reason
	}{
		{"nil", nil, ReasonNone},
		{"transient", &errs.Transient{Source: "rpc", Err: errors.New("boom")}, ReasonTransient},
		{"quote unavailable", &errs.QuoteUnavailable{Venue: "v", Pair: "p", Err: errors.New("x")}, ReasonQuoteUnavailable},
		{"risk rejected", &errs.RiskRejected{Reason: "blacklisted"}, ReasonRiskRejected},
		{"stale", &errs.Stale{Age: "1m", MaxAge: "30s"}, ReasonStale},
		{"execution partial", &errs.ExecutionPartial{StepIndex: 2, Cause: errors.New("x")}, ReasonExecutionPartial},
		{"execution atomic failed", &errs.ExecutionAtomicFailed{Cause: errors.New("x")}, ReasonExecutionAtomicFailed},
		{"timeout", &errs.Timeout{Stage: "execution"}, ReasonTimeout},
		{"fatal", &errs.Fatal{Cause: errors.New("x")}, ReasonFatal},
		{"unknown error", errors.New("something else"), ReasonOther},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeFailureReason(tc.err))
		})
	}
}

func TestRecordAttemptIncrementsByKind(t *testing.T) {
	r := newTestRecorder()
	r.RecordAttempt(types.KindCrossExchange, "ethereum")
	r.RecordAttempt(types.KindCrossExchange, "polygon")
	r.RecordAttempt(types.KindTriangular, "ethereum")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.attempts.WithLabelValues("cross_exchange")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.attempts.WithLabelValues("triangular")))
}

func TestRecordResultSuccessUpdatesProfitAndSuccesses(t *testing.T) {
	r := newTestRecorder()
	result := types.ExecutionResult{
		Success:            true,
		RealizedProfitUSD:  decimal.NewFromInt(42),
		RealizedGasCostUSD: decimal.NewFromInt(3),
		Elapsed:            2 * time.Second,
		FinalState:         types.StateSuccess,
	}
	r.RecordResult(result, types.KindFlashLoan, "ethereum")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.successes.WithLabelValues("flash_loan", "ethereum")))
	assert.Equal(t, 42.0, testutil.ToFloat64(r.profitUSD.WithLabelValues("flash_loan")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.gasCostUSD.WithLabelValues("ethereum")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.successRatio.WithLabelValues("flash_loan", "ethereum")))
}

func TestRecordResultFailureUpdatesFailuresWithNormalizedReason(t *testing.T) {
	r := newTestRecorder()
	result := types.ExecutionResult{
		Success:    false,
		FinalState: types.StateRejected,
		Error:      &errs.RiskRejected{Reason: "max concurrent trades reached"},
		Elapsed:    time.Second,
	}
	r.RecordResult(result, types.KindCrossExchange, "ethereum")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.failures.WithLabelValues("cross_exchange", "ethereum", string(ReasonRiskRejected))))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.successRatio.WithLabelValues("cross_exchange", "ethereum")))
}

func TestSuccessRatioIsCumulativeAcrossCalls(t *testing.T) {
	r := newTestRecorder()
	success := types.ExecutionResult{Success: true, RealizedProfitUSD: decimal.Zero, FinalState: types.StateSuccess}
	failure := types.ExecutionResult{Success: false, FinalState: types.StateFailed, Error: &errs.Timeout{Stage: "execution"}}

	r.RecordResult(success, types.KindCrossExchange, "ethereum")
	r.RecordResult(success, types.KindCrossExchange, "ethereum")
	r.RecordResult(failure, types.KindCrossExchange, "ethereum")

	assert.InDelta(t, 2.0/3.0, testutil.ToFloat64(r.successRatio.WithLabelValues("cross_exchange", "ethereum")), 1e-9)
}

func TestRecordAPIRequestIncrementsCounter(t *testing.T) {
	r := newTestRecorder()
	r.RecordAPIRequest("POST", "/execute", 200, 15.5)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.apiRequests.WithLabelValues("POST", "/execute", "200")))
}
