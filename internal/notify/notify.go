// Package notify implements the notification fan-out the Coordinator (C9)
// publishes every terminal ExecutionResult to, per spec.md §7: "every
// execution produces exactly one notification". It replaces the source
// pattern SPEC_FULL.md flags for re-architecture — a global callback list
// mutated from multiple goroutines — with a copy-on-write subscriber list
// (Subscribe never blocks a concurrent Notify, Notify never blocks a
// concurrent Subscribe) so each registered Sink is invoked at most once
// per result, adapted from a fan-out Manager's dispatch shape, generalized
// from a fixed constructor-time alerter list to a registry subscribers can
// join at runtime.
package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/chainarb/core/internal/types"
)

// Sink is one notification destination: chat bot, log line, broadcast bus.
type Sink interface {
	Name() string
	Send(ctx context.Context, result types.ExecutionResult, opp types.Opportunity) error
}

// Hub fans a terminal ExecutionResult out to every registered Sink.
// Satisfies internal/executor.Notifier.
type Hub struct {
	sinks   atomic.Pointer[[]Sink]
	timeout time.Duration
	log     zerolog.Logger

	mu sync.Mutex // serializes Subscribe's read-modify-write of sinks
}

// NewHub builds an empty Hub. timeout bounds every individual Sink.Send
// call so one slow webhook never stalls the Coordinator goroutine that
// calls Notify.
func NewHub(timeout time.Duration, log zerolog.Logger) *Hub {
	h := &Hub{timeout: timeout, log: log.With().Str("component", "notify").Logger()}
	empty := []Sink{}
	h.sinks.Store(&empty)
	return h
}

// Subscribe registers sink. Copy-on-write: existing Notify calls observe
// either the old or the new slice in full, never a torn read.
func (h *Hub) Subscribe(sink Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cur := *h.sinks.Load()
	next := make([]Sink, len(cur)+1)
	copy(next, cur)
	next[len(cur)] = sink
	h.sinks.Store(&next)
}

// Notify delivers result/opp to every subscribed sink exactly once. A
// sink error is logged, never propagated — spec.md §7 guarantees one
// notification attempt per sink, not a successful delivery.
func (h *Hub) Notify(result types.ExecutionResult, opp types.Opportunity) {
	sinks := *h.sinks.Load()
	if len(sinks) == 0 {
		return
	}
	for _, s := range sinks {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		err := s.Send(ctx, result, opp)
		cancel()
		if err != nil {
			h.log.Warn().Err(err).Str("sink", s.Name()).Str("opportunity_id", result.OpportunityID).
				Msg("notification sink failed")
		}
	}
}

// Summary renders the single-line cause spec.md §7 requires: success with
// a profit figure, or failure with a one-line cause.
func Summary(result types.ExecutionResult) string {
	if result.Success {
		return "success, realized profit $" + result.RealizedProfitUSD.StringFixed(2)
	}
	cause := "unknown"
	if result.Error != nil {
		cause = result.Error.Error()
	}
	return string(result.FinalState) + ": " + cause
}
