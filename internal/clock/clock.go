// Package clock provides the periodic-tick scheduling used by scanners and
// health checks (C1 in spec.md §2). It centralizes jitter so many chains
// ticking on the same nominal interval don't thunder into the venue
// adapters at the same instant, per spec.md §9 Design Notes.
package clock

import (
	"context"
	"math/rand"
	"time"
)

// Ticker runs fn every interval (plus or minus up to JitterFrac of interval,
// randomized per tick) until ctx is cancelled. It never runs fn
// concurrently with itself and stops promptly on cancellation, the same
// shape as a BaseAgent.Run loop.
type Ticker struct {
	Interval      time.Duration
	JitterFrac    float64 // e.g. 0.2 for +/-20%
	rng           *rand.Rand
}

// NewTicker builds a Ticker with the given base interval and jitter
// fraction (clamped to [0,1]).
func NewTicker(interval time.Duration, jitterFrac float64) *Ticker {
	if jitterFrac < 0 {
		jitterFrac = 0
	}
	if jitterFrac > 1 {
		jitterFrac = 1
	}
	return &Ticker{
		Interval:   interval,
		JitterFrac: jitterFrac,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run invokes fn on every tick until ctx is done. fn is expected to be a
// single bounded action (spec.md §4.2) — Run does not protect against a
// slow fn except by never overlapping invocations.
func (t *Ticker) Run(ctx context.Context, fn func(context.Context)) {
	for {
		wait := t.next()
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		fn(ctx)
	}
}

func (t *Ticker) next() time.Duration {
	if t.JitterFrac == 0 {
		return t.Interval
	}
	delta := float64(t.Interval) * t.JitterFrac
	offset := (t.rng.Float64()*2 - 1) * delta // uniform in [-delta, delta]
	d := time.Duration(float64(t.Interval) + offset)
	if d < 0 {
		d = 0
	}
	return d
}

// Deadline returns a child context bounded by d, honoring the parent's own
// deadline if it is tighter. Every external call in this system must be
// guarded this way, per spec.md §5.
func Deadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
