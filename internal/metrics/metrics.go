// Package metrics implements the Metrics & History Recorder (spec.md
// §4.7, C10): Prometheus counters/histograms keyed by strategy kind and
// chain, satisfying internal/executor.Recorder exactly. The promauto
// registration style and the bounded-cardinality reason-normalizer
// pattern are kept from a reference metrics package, narrowed from a
// broader P&L/win-rate/NATS/MCP surface (irrelevant here — there is no
// multi-agent bus or position ledger in this domain) to the
// attempt/result/profit/elapsed surface the opportunity pipeline
// actually produces.
package metrics

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/chainarb/core/internal/errs"
	"github.com/chainarb/core/internal/types"
)

// Reason is the bounded-cardinality failure category a terminal result's
// error is normalized to before it becomes a Prometheus label. An
// unbounded label (e.g. a raw RPC error string) would let a misbehaving
// collaborator blow up metric cardinality; the errs package's tagged
// variants already form the bounded set this normalizes onto.
type Reason string

const (
	ReasonNone                  Reason = "none"
	ReasonTransient             Reason = "transient"
	ReasonQuoteUnavailable      Reason = "quote_unavailable"
	ReasonRiskRejected          Reason = "risk_rejected"
	ReasonStale                 Reason = "stale"
	ReasonExecutionPartial      Reason = "execution_partial"
	ReasonExecutionAtomicFailed Reason = "execution_atomic_failed"
	ReasonTimeout               Reason = "timeout"
	ReasonFatal                 Reason = "fatal"
	ReasonOther                 Reason = "other"
)

// NormalizeFailureReason maps a terminal ExecutionResult's error onto the
// bounded Reason set via errors.As against internal/errs's tagged
// variants, so a dynamic error message never becomes an unbounded metric
// label.
func NormalizeFailureReason(err error) Reason {
	if err == nil {
		return ReasonNone
	}
	var transient *errs.Transient
	var quoteUnavailable *errs.QuoteUnavailable
	var riskRejected *errs.RiskRejected
	var stale *errs.Stale
	var partial *errs.ExecutionPartial
	var atomicFailed *errs.ExecutionAtomicFailed
	var timeout *errs.Timeout
	var fatal *errs.Fatal

	switch {
	case errors.As(err, &transient):
		return ReasonTransient
	case errors.As(err, &quoteUnavailable):
		return ReasonQuoteUnavailable
	case errors.As(err, &riskRejected):
		return ReasonRiskRejected
	case errors.As(err, &stale):
		return ReasonStale
	case errors.As(err, &partial):
		return ReasonExecutionPartial
	case errors.As(err, &atomicFailed):
		return ReasonExecutionAtomicFailed
	case errors.As(err, &timeout):
		return ReasonTimeout
	case errors.As(err, &fatal):
		return ReasonFatal
	default:
		return ReasonOther
	}
}

type ratioKey struct {
	kind  types.Kind
	chain string
}

type ratioCount struct {
	successes float64
	total     float64
}

// Recorder implements internal/executor.Recorder (and is wired into
// internal/orchestrator as the C10 collaborator).
type Recorder struct {
	attempts     *prometheus.CounterVec
	successes    *prometheus.CounterVec
	failures     *prometheus.CounterVec
	profitUSD    *prometheus.CounterVec
	gasCostUSD   *prometheus.CounterVec
	elapsed      *prometheus.HistogramVec
	successRatio *prometheus.GaugeVec

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec

	ratioMu     sync.Mutex
	ratioCounts map[ratioKey]*ratioCount
}

// NewRecorder registers every metric against reg (promauto.With(reg)).
// Pass prometheus.DefaultRegisterer in production; tests should pass a
// fresh prometheus.NewRegistry() to avoid cross-test collector clashes.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		attempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chainarb_execution_attempts_total",
			Help: "Total opportunities handed to the Execution Coordinator, by strategy kind.",
		}, []string{"kind"}),
		successes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chainarb_execution_successes_total",
			Help: "Total successful executions, by strategy kind and chain.",
		}, []string{"kind", "chain"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chainarb_execution_failures_total",
			Help: "Total non-successful terminal executions, by strategy kind, chain and normalized failure reason.",
		}, []string{"kind", "chain", "reason"}),
		profitUSD: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chainarb_realized_profit_usd_total",
			Help: "Cumulative realized profit in USD from successful executions, by strategy kind.",
		}, []string{"kind"}),
		gasCostUSD: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chainarb_realized_gas_cost_usd_total",
			Help: "Cumulative realized gas cost in USD across every terminal execution, by chain.",
		}, []string{"chain"}),
		elapsed: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chainarb_execution_elapsed_seconds",
			Help:    "Wall-clock time from Execute call to terminal result, by strategy kind.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"kind"}),
		successRatio: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chainarb_success_ratio",
			Help: "Cumulative success ratio (successes / total) observed so far, by strategy kind and chain.",
		}, []string{"kind", "chain"}),
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chainarb_api_requests_total",
			Help: "Total HTTP requests served by the orchestrator's API surface.",
		}, []string{"method", "path", "status"}),
		apiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chainarb_api_request_duration_ms",
			Help:    "HTTP request latency in milliseconds, by method/path/status.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		}, []string{"method", "path", "status"}),
		ratioCounts: make(map[ratioKey]*ratioCount),
	}
}

// RecordAttempt satisfies executor.Recorder: called once per execution
// the Coordinator actually runs (after single-flight and the distributed
// lock), before the freshness/risk re-check and plan execution.
func (r *Recorder) RecordAttempt(kind types.Kind, chain string) {
	r.attempts.WithLabelValues(string(kind)).Inc()
}

// RecordResult satisfies executor.Recorder: called exactly once per
// terminal ExecutionResult, per spec.md §7's "every execution produces
// exactly one notification/recording" guarantee.
func (r *Recorder) RecordResult(result types.ExecutionResult, kind types.Kind, chain string) {
	r.elapsed.WithLabelValues(string(kind)).Observe(result.Elapsed.Seconds())
	r.gasCostUSD.WithLabelValues(chain).Add(toFloat(result.RealizedGasCostUSD))

	if result.Success {
		r.successes.WithLabelValues(string(kind), chain).Inc()
		r.profitUSD.WithLabelValues(string(kind)).Add(toFloat(result.RealizedProfitUSD))
	} else {
		reason := NormalizeFailureReason(result.Error)
		r.failures.WithLabelValues(string(kind), chain, string(reason)).Inc()
	}

	r.updateSuccessRatio(kind, chain, result.Success)
}

// updateSuccessRatio recomputes the gauge from an internally tracked
// running count. CounterVec exposes no read API, so the ratio can't be
// derived back from the successes/failures counters above — it is
// tracked independently instead. This is a dashboard approximation, not
// a gating signal; the actual gate is internal/risk's EWMA estimator.
func (r *Recorder) updateSuccessRatio(kind types.Kind, chain string, success bool) {
	r.ratioMu.Lock()
	defer r.ratioMu.Unlock()

	k := ratioKey{kind: kind, chain: chain}
	c, ok := r.ratioCounts[k]
	if !ok {
		c = &ratioCount{}
		r.ratioCounts[k] = c
	}
	c.total++
	if success {
		c.successes++
	}
	r.successRatio.WithLabelValues(string(kind), chain).Set(c.successes / c.total)
}

// RecordAPIRequest instruments one HTTP request completed by the
// orchestrator's API surface (spec.md §6.3); called by middleware.go.
func (r *Recorder) RecordAPIRequest(method, path string, statusCode int, durationMs float64) {
	status := strconv.Itoa(statusCode)
	r.apiRequests.WithLabelValues(method, path, status).Inc()
	r.apiLatency.WithLabelValues(method, path, status).Observe(durationMs)
}

// Elapsed is a convenience for callers measuring their own request spans.
func Elapsed(start time.Time) float64 {
	return float64(time.Since(start).Milliseconds())
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
