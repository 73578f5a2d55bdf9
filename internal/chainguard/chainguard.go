// Package chainguard wraps chain and venue adapter calls with a circuit
// breaker per collaborator name, so a single misbehaving chain RPC
// endpoint or venue quoter degrades gracefully instead of stalling every
// scanner that shares a worker pool with it, adapted from a
// CircuitBreakerManager shape (one gobreaker.CircuitBreaker per named
// downstream: exchange/llm/database there, one per chain/venue name
// here).
package chainguard

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

// Settings configures the breaker applied to every guarded name.
type Settings struct {
	MinRequests     uint32
	FailureRatio    float64
	OpenTimeout     time.Duration
	HalfOpenMaxReqs uint32
	CountInterval   time.Duration
}

// DefaultSettings mirrors a typical exchange breaker's defaults: trip
// after 5 requests with a 60% failure ratio, stay open 30s.
func DefaultSettings() Settings {
	return Settings{
		MinRequests:     5,
		FailureRatio:    0.6,
		OpenTimeout:     30 * time.Second,
		HalfOpenMaxReqs: 3,
		CountInterval:   10 * time.Second,
	}
}

// Registry lazily creates and caches one gobreaker.CircuitBreaker per
// guarded name (a chain tag or a venue identifier).
type Registry struct {
	settings Settings

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker

	state *prometheus.GaugeVec
}

// NewRegistry builds a Registry. reg may be nil to skip metrics
// registration (used in tests that construct multiple registries in the
// same process).
func NewRegistry(settings Settings, reg prometheus.Registerer) *Registry {
	r := &Registry{
		settings: settings,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
	opts := prometheus.GaugeOpts{
		Name: "chainarb_circuit_breaker_state",
		Help: "0=closed 1=open 2=half_open, per guarded chain/venue name",
	}
	if reg != nil {
		r.state = promauto.With(reg).NewGaugeVec(opts, []string{"name"})
	} else {
		r.state = prometheus.NewGaugeVec(opts, []string{"name"})
	}
	return r
}

func (r *Registry) breakerFor(name string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}

	s := r.settings
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: s.HalfOpenMaxReqs,
		Interval:    s.CountInterval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= s.MinRequests && ratio >= s.FailureRatio
		},
		OnStateChange: func(bname string, from, to gobreaker.State) {
			r.state.WithLabelValues(bname).Set(stateValue(to))
		},
	})
	r.breakers[name] = b
	r.state.WithLabelValues(name).Set(stateValue(b.State()))
	return b
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// Do runs fn through the circuit breaker for name. A tripped breaker
// returns gobreaker.ErrOpenState (or ErrTooManyRequests in half-open)
// without calling fn at all.
func (r *Registry) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	b := r.breakerFor(name)
	_, err := b.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// State reports the current breaker state for name, creating it (closed)
// if it does not yet exist.
func (r *Registry) State(name string) gobreaker.State {
	return r.breakerFor(name).State()
}
