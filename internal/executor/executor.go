// Package executor implements the Execution Coordinator (spec.md §4.6,
// C9): the single process-wide worker pool that drives a validated
// Opportunity from Pending to a terminal state. One Coordinator instance
// serves both the scan-driven path (opportunities drained from
// internal/queue) and the Force/webhook-approve override path — both are
// the same state machine, differing only in whether soft risk gates are
// skipped.
package executor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/chainarb/core/internal/chainadapter"
	"github.com/chainarb/core/internal/errs"
	"github.com/chainarb/core/internal/risk"
	"github.com/chainarb/core/internal/types"
	"github.com/chainarb/core/internal/venue"
)

// Recorder is the metrics collaborator; implemented by internal/metrics.
type Recorder interface {
	RecordAttempt(kind types.Kind, chain string)
	RecordResult(result types.ExecutionResult, kind types.Kind, chain string)
}

// Notifier is the alerting collaborator; implemented by internal/notify.
type Notifier interface {
	Notify(result types.ExecutionResult, opp types.Opportunity)
}

// Config holds the timeouts and pool size from spec.md §5.
type Config struct {
	MaxConcurrentTrades int64
	FreshnessTTL        time.Duration // executionFreshnessTTL, default 10s
	StepDeadline        time.Duration // default 30s
	ExecutionTimeout    time.Duration // default 5min
	HistorySize         int           // default 1000
}

// DefaultConfig mirrors spec.md §5's defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentTrades: 3,
		FreshnessTTL:        10 * time.Second,
		StepDeadline:        30 * time.Second,
		ExecutionTimeout:    5 * time.Minute,
		HistorySize:         1000,
	}
}

// Coordinator owns the worker-pool semaphore, the single-flight lock map
// and the bounded execution history.
type Coordinator struct {
	cfg Config

	chains      map[string]chainadapter.Adapter
	venues      map[string]venue.Adapter
	nativeToken map[string]string // chain -> native gas token symbol
	oracle      types.USDOracle
	risk        *risk.Manager

	sem  *semaphore.Weighted
	sf   singleflight.Group
	dist DistLock // optional, nil in single-instance deployments

	recorder Recorder
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time

	historyMu sync.Mutex
	history   []types.ExecutionResult
}

// New builds a Coordinator. chains/venues are keyed by the names used in
// Opportunity.Chain and Opportunity.Venues respectively.
func New(
	cfg Config,
	chains map[string]chainadapter.Adapter,
	venues map[string]venue.Adapter,
	nativeToken map[string]string,
	oracle types.USDOracle,
	riskMgr *risk.Manager,
	recorder Recorder,
	notifier Notifier,
	log zerolog.Logger,
) *Coordinator {
	return &Coordinator{
		cfg:         cfg,
		chains:      chains,
		venues:      venues,
		nativeToken: nativeToken,
		oracle:      oracle,
		risk:        riskMgr,
		sem:         semaphore.NewWeighted(cfg.MaxConcurrentTrades),
		recorder:    recorder,
		notifier:    notifier,
		log:         log.With().Str("component", "executor").Logger(),
		now:         time.Now,
	}
}

// SetDistLock attaches a cluster-wide lock so concurrent Execute calls for
// the same opportunity ID collapse to one execution even across more than
// one Coordinator instance, not just within this process. Optional — a
// nil dist (the default) relies on the in-process singleflight.Group
// alone.
func (c *Coordinator) SetDistLock(dist DistLock) {
	c.dist = dist
}

// Execute drives opp through the state machine, collapsing concurrent
// duplicate calls for the same opportunity ID into a single execution
// (spec.md §8 "Single-flight" / "Idempotent enqueue" invariants).
// skipSoftGates mirrors risk.Manager.Validate's Force/webhook-approve mode.
func (c *Coordinator) Execute(ctx context.Context, opp types.Opportunity, skipSoftGates bool) types.ExecutionResult {
	v, _, _ := c.sf.Do(opp.ID, func() (any, error) {
		if c.dist != nil {
			acquired, err := c.dist.TryLock(ctx, opp.ID, c.cfg.ExecutionTimeout)
			if err != nil {
				c.log.Warn().Err(err).Str("opportunity_id", opp.ID).Msg("distributed lock unavailable, proceeding with process-local singleflight only")
			} else if !acquired {
				return c.terminal(opp, c.now(), types.StateRejected, false, decimal.Zero, decimal.Zero, nil,
					&errs.RiskRejected{Reason: "opportunity already executing on another instance"}), nil
			} else {
				defer func() { _ = c.dist.Unlock(context.Background(), opp.ID) }()
			}
		}
		return c.execute(ctx, opp, skipSoftGates), nil
	})
	return v.(types.ExecutionResult)
}

func (c *Coordinator) execute(ctx context.Context, opp types.Opportunity, skipSoftGates bool) types.ExecutionResult {
	start := c.now()
	c.recorder.RecordAttempt(opp.Kind, opp.Chain)
	log := c.log.With().Str("opportunity_id", opp.ID).Str("kind", string(opp.Kind)).Str("chain", opp.Chain).Logger()

	if c.now().Sub(opp.DetectedAt) > c.cfg.FreshnessTTL {
		log.Info().Dur("age", c.now().Sub(opp.DetectedAt)).Msg("opportunity expired before execution")
		result := c.terminal(opp, start, types.StateExpired, false, decimal.Zero, decimal.Zero, nil,
			&errs.Stale{Age: c.now().Sub(opp.DetectedAt).String(), MaxAge: c.cfg.FreshnessTTL.String()})
		return result
	}

	accept, assessment := c.risk.Validate(opp, skipSoftGates)
	if !accept {
		log.Info().Strs("violations", assessment.Violations).Msg("opportunity rejected on execution re-check")
		result := c.terminal(opp, start, types.StateRejected, false, decimal.Zero, decimal.Zero, nil,
			&errs.RiskRejected{Reason: joinViolations(assessment.Violations)})
		return result
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		c.risk.CancelReservation(opp)
		result := c.terminal(opp, start, types.StateFailed, false, decimal.Zero, decimal.Zero, nil, &errs.Timeout{Stage: "acquire worker"})
		return result
	}
	defer c.sem.Release(1)

	execCtx, cancel := context.WithTimeout(ctx, c.cfg.ExecutionTimeout)
	defer cancel()

	plan := c.planFor(opp)
	txRefs, gasUsed, stepErr := c.runPlan(execCtx, opp, plan)

	var result types.ExecutionResult
	switch {
	case stepErr == nil:
		realizedProfit, gasUSD := c.observe(opp, gasUsed)
		result = c.terminal(opp, start, types.StateSuccess, true, realizedProfit, gasUSD, txRefs, nil)
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		_, gasUSD := c.observe(opp, gasUsed)
		result = c.terminal(opp, start, types.StateFailed, false, decimal.Zero, gasUSD, txRefs, &errs.Timeout{Stage: "execution"})
	case opp.Kind == types.KindFlashLoan:
		_, gasUSD := c.observe(opp, gasUsed)
		result = c.terminal(opp, start, types.StateFailed, false, decimal.Zero, gasUSD, txRefs, &errs.ExecutionAtomicFailed{Cause: stepErr})
	default:
		_, gasUSD := c.observe(opp, gasUsed)
		result = c.terminal(opp, start, types.StateFailed, false, decimal.Zero, gasUSD, txRefs, &errs.ExecutionPartial{StepIndex: len(txRefs), Cause: stepErr})
	}

	c.risk.Record(opp.Chain, opp.Kind, result)
	return result
}

// terminal finalizes a result, appends it to history and reports it to the
// recorder/notifier. Called on every exit path so every Execute call
// produces exactly one recorded ExecutionResult.
func (c *Coordinator) terminal(opp types.Opportunity, start time.Time, state types.State, success bool, realizedProfit, realizedGas decimal.Decimal, txRefs []chainadapter.TxRef, cause error) types.ExecutionResult {
	refs := make([]types.TxRef, len(txRefs))
	for i, r := range txRefs {
		refs[i] = types.TxRef(r)
	}
	result := types.ExecutionResult{
		OpportunityID:      opp.ID,
		Success:            success,
		RealizedProfitUSD:  realizedProfit,
		RealizedGasCostUSD: realizedGas,
		TxRefs:             refs,
		Elapsed:            c.now().Sub(start),
		Error:              cause,
		FinalState:         state,
		RecordedAt:         c.now(),
	}
	c.appendHistory(result)
	c.recorder.RecordResult(result, opp.Kind, opp.Chain)
	c.notifier.Notify(result, opp)
	return result
}

func (c *Coordinator) appendHistory(result types.ExecutionResult) {
	c.historyMu.Lock()
	defer c.historyMu.Unlock()
	c.history = append(c.history, result)
	if len(c.history) > c.cfg.HistorySize {
		c.history = c.history[len(c.history)-c.cfg.HistorySize:]
	}
}

// History returns a snapshot of the bounded execution history, oldest
// first.
func (c *Coordinator) History() []types.ExecutionResult {
	c.historyMu.Lock()
	defer c.historyMu.Unlock()
	out := make([]types.ExecutionResult, len(c.history))
	copy(out, c.history)
	return out
}

// observe computes realized profit/gas post-execution. On a failed run
// gasUsed may still be non-zero (a reverted on-chain call still burns
// gas), so realizedProfit is zero but realizedGas is reported.
func (c *Coordinator) observe(opp types.Opportunity, gasUsed uint64) (profit, gasUSD decimal.Decimal) {
	native := c.nativeToken[opp.Chain]
	gasAmount := decimal.NewFromInt(int64(gasUsed))
	if native != "" {
		if usd, err := c.oracle.USDValue(native, gasAmount); err == nil {
			gasUSD = usd
		}
	}
	loanFee := decimal.Zero
	if opp.Loan != nil {
		loanFee = opp.Loan.FeeUSD
	}
	profit = opp.GrossProfitUSD.Sub(gasUSD).Sub(loanFee)
	return profit, gasUSD
}

func joinViolations(v []string) string {
	s := ""
	for i, r := range v {
		if i > 0 {
			s += "; "
		}
		s += r
	}
	return s
}
