package clock

import (
	"context"
	"time"
)

// Scheduler owns the two cadences the Orchestrator needs: a scan cadence
// (drives strategy scanners) and a faster health cadence (drives chain
// health polling). Separating them lets a chain degrade within one
// health-tick without waiting for the (usually much slower) scan interval —
// see SPEC_FULL.md §11 and scenario 6 in spec.md §8.
type Scheduler struct {
	scan   *Ticker
	health *Ticker
}

// NewScheduler builds a Scheduler from the configured scan and health
// intervals, both jittered by jitterFrac.
func NewScheduler(scanInterval, healthInterval time.Duration, jitterFrac float64) *Scheduler {
	return &Scheduler{
		scan:   NewTicker(scanInterval, jitterFrac),
		health: NewTicker(healthInterval, jitterFrac),
	}
}

// ScheduleScan runs fn on the scan cadence until ctx is cancelled. Intended
// to be called once per (chain, strategy) scanner.
func (s *Scheduler) ScheduleScan(ctx context.Context, fn func(context.Context)) {
	s.scan.Run(ctx, fn)
}

// ScheduleHealth runs fn on the (faster) health cadence until ctx is
// cancelled. Intended to be called once per chain adapter.
func (s *Scheduler) ScheduleHealth(ctx context.Context, fn func(context.Context)) {
	s.health.Run(ctx, fn)
}
