// Package scanner implements the Strategy Scanner (spec.md §4.2, C5): per
// chain, on each scan tick, it produces zero or more raw Opportunity
// values from cross-exchange, triangular and flash-loan loops and pushes
// them to the Aggregator. Grounded on an arbitrage-agent shape — the
// same argmin/argmax spread comparison across a price cache, generalized
// from a single BDI agent loop into a per-chain component driven by
// internal/clock.
package scanner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/chainarb/core/internal/chainguard"
	"github.com/chainarb/core/internal/pricecache"
	"github.com/chainarb/core/internal/types"
	"github.com/chainarb/core/internal/venue"
)

// VenueConfig holds the per-venue fee schedule feeding the scanner's
// triangular-hop simulation, supplementing the original's tracked
// maker/taker/withdrawal percentages (SPEC_FULL.md §11).
type VenueConfig struct {
	Adapter venue.Adapter
	Fees    venue.FeeSchedule
}

// Config configures one chain's scanner.
type Config struct {
	Chain string
	Venues map[string]VenueConfig

	Pairs             []types.Pair   // cross-exchange candidate pairs
	TriangularCycles  [][]string     // each a token cycle A->B->C->A, len>=3
	FlashLoanPairs    []types.Pair

	MinProfitPct   decimal.Decimal // e.g. 0.003 for 0.3%
	QuoteDeadline  time.Duration
	LoanCatalog    LoanProviderCatalog
	LoanCapFraction decimal.Decimal // fraction of provider max to actually borrow
	FlashLoanCap    decimal.Decimal // configured absolute cap

	EnableCrossExchange bool
	EnableTriangular    bool
	EnableFlashLoan     bool
}

// Scanner runs one chain's configured strategy loops on each tick.
type Scanner struct {
	cfg    Config
	cache  *pricecache.Cache
	guard  *chainguard.Registry
	out    chan<- types.Opportunity
	log    zerolog.Logger
}

// New builds a Scanner. out is the bounded channel shared with the
// Aggregator; pushes never block (see push below).
func New(cfg Config, cache *pricecache.Cache, guard *chainguard.Registry, out chan<- types.Opportunity, log zerolog.Logger) *Scanner {
	return &Scanner{
		cfg:   cfg,
		cache: cache,
		guard: guard,
		out:   out,
		log:   log.With().Str("component", "scanner").Str("chain", cfg.Chain).Logger(),
	}
}

// Tick runs every enabled strategy loop once. Each loop is independent and
// a failure inside one venue quote never aborts the others, per spec.md
// §4.2's failure semantics.
func (s *Scanner) Tick(ctx context.Context) {
	if s.cfg.EnableCrossExchange {
		s.crossExchangeLoop(ctx)
	}
	if s.cfg.EnableTriangular {
		s.triangularLoop(ctx)
	}
	if s.cfg.EnableFlashLoan {
		s.flashLoanLoop(ctx)
	}
}

// quote wraps a venue quote call behind the chain's circuit breaker and a
// per-call deadline; a failure is reported, never panics the scanner.
func (s *Scanner) quote(ctx context.Context, v venue.Adapter, pair types.Pair, amountIn decimal.Decimal) (venue.Quote, error) {
	qctx, cancel := context.WithTimeout(ctx, s.cfg.QuoteDeadline)
	defer cancel()

	var q venue.Quote
	err := s.guard.Do(qctx, s.cfg.Chain+":"+v.Name(), func(ctx context.Context) error {
		var innerErr error
		q, innerErr = v.Quote(ctx, pair, amountIn)
		return innerErr
	})
	return q, err
}

// liquidity wraps a venue's dedicated Liquidity call behind the chain's
// circuit breaker and a per-call deadline, the same guard path as quote.
// A failure collapses to zero liquidity (fails the downstream gate
// rather than fabricating a number), never panics the scanner.
func (s *Scanner) liquidity(ctx context.Context, v venue.Adapter, pair types.Pair) decimal.Decimal {
	qctx, cancel := context.WithTimeout(ctx, s.cfg.QuoteDeadline)
	defer cancel()

	var liq decimal.Decimal
	err := s.guard.Do(qctx, s.cfg.Chain+":"+v.Name(), func(ctx context.Context) error {
		var innerErr error
		liq, innerErr = v.Liquidity(ctx, pair)
		return innerErr
	})
	if err != nil {
		s.log.Debug().Err(err).Str("venue", v.Name()).Msg("venue liquidity lookup failed")
		return decimal.Zero
	}
	return liq
}

func (s *Scanner) newID() string { return uuid.NewString() }

// push is the non-blocking, drop-oldest-on-full handoff to the Aggregator
// required by spec.md §4.2: the opportunity is already near-stale by the
// time the queue is full, so dropping the oldest entry favors freshness.
func push(out chan<- types.Opportunity, opp types.Opportunity) {
	for {
		select {
		case out <- opp:
			return
		default:
		}
		select {
		case <-out:
		default:
			return
		}
	}
}

// quoteAllVenues fetches a quote from every configured venue in parallel,
// each bounded by QuoteDeadline, and returns only the ones that succeeded.
func (s *Scanner) quoteAllVenues(ctx context.Context, pair types.Pair, amountIn decimal.Decimal) map[string]venue.Quote {
	type result struct {
		name string
		q    venue.Quote
		err  error
	}

	resultsCh := make(chan result, len(s.cfg.Venues))
	var wg sync.WaitGroup
	for name, vc := range s.cfg.Venues {
		wg.Add(1)
		go func(name string, vc VenueConfig) {
			defer wg.Done()
			q, err := s.quote(ctx, vc.Adapter, pair, amountIn)
			resultsCh <- result{name: name, q: q, err: err}
		}(name, vc)
	}
	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	out := make(map[string]venue.Quote)
	for r := range resultsCh {
		if r.err != nil {
			s.log.Debug().Err(r.err).Str("venue", r.name).Msg("venue quote failed, skipping")
			continue
		}
		out[r.name] = r.q
	}
	return out
}
