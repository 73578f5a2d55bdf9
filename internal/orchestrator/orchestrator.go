// Package orchestrator implements the Orchestrator (spec.md §4.8, C11):
// the top-level process that owns every other component's lifecycle and
// wires the opportunity pipeline end to end — scanners feed the
// aggregator, the aggregator's survivors are enqueued, a pool of drain
// workers pulls from the queue and drives the Coordinator, and a health
// loop per chain keeps the Risk Manager's degraded-chain view current.
// Mirrors a familiar Initialize/Run/Shutdown lifecycle shape, generalized
// from a fixed MCP agent roster to a per-chain scanner roster built from
// config.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chainarb/core/internal/aggregator"
	"github.com/chainarb/core/internal/chainadapter"
	"github.com/chainarb/core/internal/clock"
	"github.com/chainarb/core/internal/executor"
	"github.com/chainarb/core/internal/queue"
	"github.com/chainarb/core/internal/risk"
	"github.com/chainarb/core/internal/scanner"
	"github.com/chainarb/core/internal/types"
)

// ChainHandle bundles one chain's adapter with the scanner(s) driving it.
// A chain may run more than one scanner (e.g. a dedicated flash-loan
// scanner alongside the cross-exchange/triangular one); every scanner in
// Scanners shares the chain's adapter and scan cadence.
type ChainHandle struct {
	Adapter  chainadapter.Adapter
	Scanners []*scanner.Scanner
}

// Config holds the per-process cadence and pool-sizing knobs from
// spec.md §5/§6.4 that are not already captured by a collaborator's own
// Config.
type Config struct {
	ScanInterval        map[string]time.Duration // per chain, falls back to DefaultScanInterval
	DefaultScanInterval time.Duration
	HealthInterval      time.Duration
	JitterFraction      float64
	ShutdownGrace       time.Duration
	DrainWorkers        int
	RawBufferSize       int // scanner -> aggregator channel capacity
	RecentCapacity      int // bound on the Force()-lookup window
	CrossChainInterval  time.Duration
}

// DefaultConfig mirrors spec.md §5/§6.4's defaults for the knobs this
// package owns directly.
func DefaultConfig() Config {
	return Config{
		DefaultScanInterval: 3 * time.Second,
		HealthInterval:      5 * time.Second,
		JitterFraction:      0.2,
		ShutdownGrace:       30 * time.Second,
		DrainWorkers:        3,
		RawBufferSize:       512,
		RecentCapacity:      2048,
		CrossChainInterval:  30 * time.Second,
	}
}

// Health is the snapshot returned by Orchestrator.Health, per spec.md
// §4.8: per-chain adapter status, queue depths and active workers.
type Health struct {
	Ready         bool
	ChainHealthy  map[string]bool
	QueueDepths   map[types.Kind]int
	ActiveWorkers int
}

// Orchestrator owns every collaborator's lifecycle. Zero value is not
// usable; construct with New.
type Orchestrator struct {
	cfg Config

	chains map[string]ChainHandle
	agg    *aggregator.Aggregator
	risk   *risk.Manager
	queues *queue.Queues
	exec   *executor.Coordinator

	log zerolog.Logger
	now func() time.Time

	rawCh chan types.Opportunity

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.RWMutex
	ready        bool
	chainHealthy map[string]bool
	activeWorkers int

	recentMu  sync.Mutex
	recent    map[string]types.Opportunity
	recentSeq []string // FIFO order for eviction
}

// New builds an Orchestrator from its collaborators. Every collaborator
// is already fully constructed by the caller (spec.md §6.1: this
// package wires components together, it does not build them).
func New(
	cfg Config,
	chains map[string]ChainHandle,
	agg *aggregator.Aggregator,
	riskMgr *risk.Manager,
	queues *queue.Queues,
	exec *executor.Coordinator,
	log zerolog.Logger,
) *Orchestrator {
	healthy := make(map[string]bool, len(chains))
	for name := range chains {
		healthy[name] = false
	}
	return &Orchestrator{
		cfg:          cfg,
		chains:       chains,
		agg:          agg,
		risk:         riskMgr,
		queues:       queues,
		exec:         exec,
		log:          log.With().Str("component", "orchestrator").Logger(),
		now:          time.Now,
		rawCh:        make(chan types.Opportunity, cfg.RawBufferSize),
		chainHealthy: healthy,
		recent:       make(map[string]types.Opportunity),
	}
}

// Start initializes every chain adapter, then spawns the scanner,
// health, aggregation, drain-worker and daily-reset goroutines, and
// returns once every chain adapter has been initialized. Readiness
// (Health().Ready) is a separate, later signal: it only flips to true
// once the health loop's first poll reports every chain healthy, per
// spec.md §4.8.
func (o *Orchestrator) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	var initErr error
	for name, handle := range o.chains {
		if err := handle.Adapter.Initialize(runCtx); err != nil {
			initErr = fmt.Errorf("orchestrator: initialize chain %q: %w", name, err)
			o.log.Error().Err(err).Str("chain", name).Msg("chain adapter failed to initialize")
		}
	}
	if initErr != nil {
		cancel()
		return initErr
	}

	for name, handle := range o.chains {
		o.spawnChainLoops(runCtx, name, handle)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.aggregationLoop(runCtx)
	}()

	for i := 0; i < o.cfg.DrainWorkers; i++ {
		o.wg.Add(1)
		go func(id int) {
			defer o.wg.Done()
			o.drainLoop(runCtx, id)
		}(i)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.dailyResetLoop(runCtx)
	}()

	if o.cfg.CrossChainInterval > 0 {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.crossChainLoop(runCtx)
		}()
	}

	// Vacuously ready if no chain is configured at all; otherwise ready
	// only flips once setChainHealthy has observed every chain healthy.
	o.mu.Lock()
	o.maybeBecomeReadyLocked()
	o.mu.Unlock()

	o.log.Info().Int("chains", len(o.chains)).Msg("orchestrator started")
	return nil
}

// Stop cancels every background goroutine and waits up to
// cfg.ShutdownGrace for them to reach a terminal state, then shuts down
// every chain adapter, per spec.md §4.8.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.setReady(false)
	if o.cancel != nil {
		o.cancel()
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(o.cfg.ShutdownGrace):
		o.log.Warn().Dur("grace", o.cfg.ShutdownGrace).Msg("shutdown grace period elapsed before all workers drained")
	}

	var lastErr error
	for name, handle := range o.chains {
		shutdownCtx, cancel := context.WithTimeout(ctx, o.cfg.ShutdownGrace)
		if err := handle.Adapter.Shutdown(shutdownCtx); err != nil {
			lastErr = fmt.Errorf("orchestrator: shutdown chain %q: %w", name, err)
			o.log.Error().Err(err).Str("chain", name).Msg("chain adapter failed to shut down cleanly")
		}
		cancel()
	}
	o.log.Info().Msg("orchestrator stopped")
	return lastErr
}

// Health reports the current snapshot for the HTTP surface's /health
// endpoint (SPEC_FULL.md §6.3).
func (o *Orchestrator) Health() Health {
	o.mu.RLock()
	defer o.mu.RUnlock()

	chainHealthy := make(map[string]bool, len(o.chainHealthy))
	for k, v := range o.chainHealthy {
		chainHealthy[k] = v
	}
	return Health{
		Ready:         o.ready,
		ChainHealthy:  chainHealthy,
		QueueDepths:   o.queues.Depths(),
		ActiveWorkers: o.activeWorkers,
	}
}

// Force drives the opportunity identified by id through the Coordinator
// bypassing the soft risk gates (chain-degraded and blacklist gates
// still apply), for the operator-override path — spec.md §6.3's
// POST /execute and POST /webhook/approve. id must name an opportunity
// the orchestrator has enqueued within its recent window; Force never
// fabricates an opportunity from an ID alone.
func (o *Orchestrator) Force(ctx context.Context, id string) (types.ExecutionResult, error) {
	opp, ok := o.lookupRecent(id)
	if !ok {
		return types.ExecutionResult{}, fmt.Errorf("orchestrator: opportunity %q not known (expired or never observed)", id)
	}
	return o.exec.Execute(ctx, opp, true), nil
}

func (o *Orchestrator) setReady(ready bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ready = ready
}

func (o *Orchestrator) setChainHealthy(name string, healthy bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.chainHealthy[name] = healthy
	if healthy {
		o.maybeBecomeReadyLocked()
	}
}

// maybeBecomeReadyLocked flips ready to true the first time every known
// chain reports healthy (spec.md §4.8: "record ready only when all chain
// adapters report healthy"). Must be called with o.mu held. A no-op once
// already ready, and vacuously true when o.chainHealthy is empty.
func (o *Orchestrator) maybeBecomeReadyLocked() {
	if o.ready {
		return
	}
	for _, healthy := range o.chainHealthy {
		if !healthy {
			return
		}
	}
	o.ready = true
}

func (o *Orchestrator) incActiveWorkers(delta int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.activeWorkers += delta
}

// spawnChainLoops starts one scan-cadence goroutine per scanner and one
// health-cadence goroutine for the chain's adapter.
func (o *Orchestrator) spawnChainLoops(ctx context.Context, name string, handle ChainHandle) {
	interval := o.cfg.ScanInterval[name]
	if interval <= 0 {
		interval = o.cfg.DefaultScanInterval
	}
	sched := clock.NewScheduler(interval, o.cfg.HealthInterval, o.cfg.JitterFraction)

	for _, s := range handle.Scanners {
		s := s
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			sched.ScheduleScan(ctx, func(tickCtx context.Context) {
				o.runScan(tickCtx, s)
			})
		}()
	}

	adapter := handle.Adapter
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		sched.ScheduleHealth(ctx, func(tickCtx context.Context) {
			healthy := adapter.IsHealthy(tickCtx)
			o.setChainHealthy(name, healthy)
			o.risk.SetChainDegraded(name, !healthy)
			if !healthy {
				o.log.Warn().Str("chain", name).Msg("chain adapter reports unhealthy, marking degraded")
			}
		})
	}()
}

// runScan runs one scanner tick. The scanner was built against rawCh and
// pushes its output there itself (non-blocking, drop-oldest), so there is
// nothing to drain here.
func (o *Orchestrator) runScan(ctx context.Context, s *scanner.Scanner) {
	s.Tick(ctx)
}

// aggregationLoop batches whatever raw opportunities are currently
// sitting in rawCh, runs them through the Aggregator, remembers each
// survivor for Force() lookups, and enqueues it. Batching (rather than
// processing one at a time) lets Process's fingerprint dedupe work
// across opportunities detected in the same tick, per spec.md §4.3.
func (o *Orchestrator) aggregationLoop(ctx context.Context) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch := o.drainRaw()
			if len(batch) == 0 {
				continue
			}
			for _, opp := range o.agg.Process(batch) {
				o.rememberRecent(opp)
				if dropped := o.queues.Enqueue(opp); dropped != nil {
					o.log.Debug().Str("dropped_id", dropped.ID).Str("kind", string(dropped.Kind)).
						Msg("queue at capacity, dropped lowest-priority opportunity")
				}
			}
		}
	}
}

func (o *Orchestrator) drainRaw() []types.Opportunity {
	var batch []types.Opportunity
	for {
		select {
		case opp := <-o.rawCh:
			batch = append(batch, opp)
		default:
			return batch
		}
	}
}

// drainLoop pulls the highest-priority ready opportunity across kinds
// (the Queue's weighted round-robin) and drives it through the
// Coordinator. Several of these run concurrently (cfg.DrainWorkers);
// the Coordinator's own semaphore bounds actual concurrent execution,
// per spec.md §4.6.
func (o *Orchestrator) drainLoop(ctx context.Context, id int) {
	log := o.log.With().Int("worker", id).Logger()
	for {
		opp, ok := o.queues.Dequeue(ctx)
		if !ok {
			return
		}
		o.incActiveWorkers(1)
		result := o.exec.Execute(ctx, opp, false)
		o.incActiveWorkers(-1)
		log.Debug().Str("opportunity_id", opp.ID).Str("state", string(result.FinalState)).
			Bool("success", result.Success).Msg("opportunity drained")
	}
}

// dailyResetLoop fires risk.Reset at every UTC midnight, spec.md §9's one
// sanctioned use of wallclock time.
func (o *Orchestrator) dailyResetLoop(ctx context.Context) {
	for {
		next := risk.NextUTCMidnight(o.now())
		wait := next.Sub(o.now())
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			o.risk.Reset()
			o.log.Info().Msg("daily counters reset at UTC midnight")
		}
	}
}

// crossChainLoop periodically runs the background, informational-only
// cross-chain analyzer (spec.md §4.3) over the current recent window and
// logs what it finds. Its output is never fed back into the queue — it
// never drives execution.
func (o *Orchestrator) crossChainLoop(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.CrossChainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, found := range aggregator.AnalyzeCrossChain(o.snapshotRecent()) {
				o.log.Info().
					Str("token_a", found.TokenA).Str("token_b", found.TokenB).
					Str("chain_a", found.ChainA).Str("chain_b", found.ChainB).
					Str("delta_pct", found.DeltaPct.String()).
					Msg("cross-chain price divergence observed")
			}
		}
	}
}

func (o *Orchestrator) snapshotRecent() []types.Opportunity {
	o.recentMu.Lock()
	defer o.recentMu.Unlock()
	out := make([]types.Opportunity, 0, len(o.recent))
	for _, id := range o.recentSeq {
		out = append(out, o.recent[id])
	}
	return out
}

func (o *Orchestrator) rememberRecent(opp types.Opportunity) {
	o.recentMu.Lock()
	defer o.recentMu.Unlock()
	if _, exists := o.recent[opp.ID]; !exists {
		o.recentSeq = append(o.recentSeq, opp.ID)
	}
	o.recent[opp.ID] = opp
	for len(o.recentSeq) > o.cfg.RecentCapacity {
		oldest := o.recentSeq[0]
		o.recentSeq = o.recentSeq[1:]
		delete(o.recent, oldest)
	}
}

func (o *Orchestrator) lookupRecent(id string) (types.Opportunity, bool) {
	o.recentMu.Lock()
	defer o.recentMu.Unlock()
	opp, ok := o.recent[id]
	return opp, ok
}

// RawChannel exposes the scanner output channel so scanner.New can be
// constructed with this orchestrator as its destination. Exported
// rather than accepted via New because scanners must be built (and
// their chains' ChainHandle populated) before New can run.
func (o *Orchestrator) RawChannel() chan<- types.Opportunity {
	return o.rawCh
}
