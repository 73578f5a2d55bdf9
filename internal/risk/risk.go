// Package risk implements the Risk Manager (spec.md §4.4, C7): gates
// opportunities against portfolio limits and blacklists, tracks daily
// volume and concurrent-trade counters, and maintains a per-(chain, kind)
// success-rate estimator. The violations-list gate pattern follows a
// CheckPortfolioLimits shape (accumulate a list of named violations,
// approve iff empty) generalized from a position-sizing domain to
// opportunity execution gating.
package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainarb/core/internal/types"
)

// Level is the qualitative risk bucket derived from RiskScore, per
// spec.md §4.4: Low <25, Medium <50, High <75, Critical >=75.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

func levelFor(score float64) Level {
	switch {
	case score >= 75:
		return LevelCritical
	case score >= 50:
		return LevelHigh
	case score >= 25:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Assessment is the outcome of a single Validate call.
type Assessment struct {
	Level      Level
	Violations []string
}

// Manager is the C7 component. It owns the daily counters, the
// success-rate estimator and the chain-health view needed for the
// Coordinator's risk re-check (spec.md §4.6 step 3).
type Manager struct {
	mu sync.Mutex

	limits     types.PortfolioLimits
	blacklists types.Blacklists
	oracle     types.USDOracle

	daily         *types.DailyCounters
	activeTrades  int
	successRates  map[successKey]*ewma
	degradedChain map[string]bool
	now           func() time.Time
}

type successKey struct {
	chain string
	kind  types.Kind
}

// New builds a Manager. oracle converts token-native amounts to USD; per
// spec.md §9 every caller here fails closed on an oracle error rather
// than fabricating a price.
func New(limits types.PortfolioLimits, blacklists types.Blacklists, oracle types.USDOracle) *Manager {
	return &Manager{
		limits:        limits,
		blacklists:    blacklists,
		oracle:        oracle,
		daily:         types.NewDailyCounters(),
		successRates:  make(map[successKey]*ewma),
		degradedChain: make(map[string]bool),
		now:           time.Now,
	}
}

func (m *Manager) today() string {
	return m.now().UTC().Format("2006-01-02")
}

// SetChainDegraded marks chain's health for the risk re-check; a Degraded
// chain rejects every opportunity regardless of other gates (spec.md §8
// scenario 6).
func (m *Manager) SetChainDegraded(chain string, degraded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.degradedChain[chain] = degraded
}

// Validate runs every gate in spec.md §4.4 and returns (accept,
// assessment). skipSoftGates is set by the Force/webhook-approve path
// (SPEC_FULL.md §11): it still enforces blacklists, the chain-degraded
// gate and the critical-risk gate but skips the USD-amount (single-trade
// and daily-volume) and concurrency gates an operator is explicitly
// overriding.
//
// On accept, Validate also reserves opp's daily volume and a
// concurrent-trade slot in the same critical section as the checks
// above, so two opportunities racing on the same chain can't both read
// the daily total as under the cap before either commits. A caller that
// ends up not executing the reserved opportunity after all (e.g. it
// could not acquire a worker slot) must call CancelReservation to undo
// it; BeginExecution remains available for callers that already know
// they're proceeding and only need the reservation, not the gates.
func (m *Manager) Validate(opp types.Opportunity, skipSoftGates bool) (bool, Assessment) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var violations []string

	if m.degradedChain[opp.Chain] {
		violations = append(violations, "chain is degraded")
	}
	if m.blacklists.Blocks(opp.Path, opp.Venues) {
		violations = append(violations, "path or venue is blacklisted")
	}

	level := levelFor(opp.RiskScore)
	if level == LevelCritical {
		violations = append(violations, "risk score is critical")
	}

	if !skipSoftGates {
		amountInUSD, err := m.amountInUSD(opp)
		if err != nil {
			violations = append(violations, "USD conversion unavailable: "+err.Error())
		} else {
			if amountInUSD.GreaterThan(m.limits.MaxSingleTradeUSD) {
				violations = append(violations, "amount exceeds max single trade limit")
			}
			dailyCap, ok := m.limits.MaxDailyVolumeUSD[opp.Chain]
			if ok && m.daily.Get(opp.Chain, m.today()).Add(amountInUSD).GreaterThan(dailyCap) {
				violations = append(violations, "amount would exceed max daily volume for chain")
			}
		}
		if m.activeTrades >= m.limits.MaxConcurrentTrades {
			violations = append(violations, "max concurrent trades reached")
		}
	}

	accept := len(violations) == 0
	if accept {
		m.reserveLocked(opp)
	}
	return accept, Assessment{Level: level, Violations: violations}
}

func (m *Manager) amountInUSD(opp types.Opportunity) (decimal.Decimal, error) {
	if len(opp.Path) == 0 {
		return decimal.Zero, nil
	}
	return m.oracle.USDValue(opp.Path[0], opp.AmountIn)
}

// reserveLocked commits opp's daily volume and a concurrent-trade slot.
// Must be called with m.mu held.
func (m *Manager) reserveLocked(opp types.Opportunity) {
	m.activeTrades++
	amountInUSD, err := m.amountInUSD(opp)
	if err == nil {
		m.daily.Add(opp.Chain, m.today(), amountInUSD)
	}
}

// BeginExecution increments the active-trade count and daily volume
// directly, bypassing the gates in Validate; call when a worker
// transitions an opportunity to Executing outside of a Validate call.
func (m *Manager) BeginExecution(opp types.Opportunity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserveLocked(opp)
}

// CancelReservation undoes a reservation made by an accepting Validate
// call (or BeginExecution) when the opportunity is abandoned before
// reaching a terminal Record call — e.g. the coordinator failed to
// acquire a worker slot after all. Without this, an abandoned attempt
// would permanently inflate the daily-volume and concurrent-trade
// counters it never actually consumed.
func (m *Manager) CancelReservation(opp types.Opportunity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeTrades--
	if m.activeTrades < 0 {
		m.activeTrades = 0
	}
	amountInUSD, err := m.amountInUSD(opp)
	if err == nil {
		m.daily.Add(opp.Chain, m.today(), amountInUSD.Neg())
	}
}

// Record updates daily counters and the per-(chain, kind) success-rate
// EWMA (alpha=0.1) from a terminal ExecutionResult, per spec.md §4.4.
func (m *Manager) Record(chain string, kind types.Kind, result types.ExecutionResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.activeTrades--
	if m.activeTrades < 0 {
		m.activeTrades = 0
	}

	k := successKey{chain: chain, kind: kind}
	e, ok := m.successRates[k]
	if !ok {
		e = newEWMA(0.1, 0.5)
		m.successRates[k] = e
	}
	obs := 0.0
	if result.Success {
		obs = 1.0
	}
	e.update(obs)
}

// SuccessRate satisfies aggregator.SuccessRateLookup: the current EWMA
// estimate for (chain, kind), defaulting to 0.5 when never observed.
func (m *Manager) SuccessRate(chain string, kind types.Kind) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := successKey{chain: chain, kind: kind}
	e, ok := m.successRates[k]
	if !ok {
		return 0.5
	}
	return e.value
}

// Reset clears the daily counters. Scheduled at UTC midnight by the
// Orchestrator; the success-rate estimator is intentionally untouched —
// it is a rolling signal, not a daily one.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.daily.Reset()
}

// NextUTCMidnight returns the next wallclock UTC midnight after now, for
// scheduling Reset (spec.md §9: wallclock only for external/calendar
// timestamps).
func NextUTCMidnight(now time.Time) time.Time {
	utc := now.UTC()
	next := time.Date(utc.Year(), utc.Month(), utc.Day()+1, 0, 0, 0, 0, time.UTC)
	return next
}
