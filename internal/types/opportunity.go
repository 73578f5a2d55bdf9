// Package types defines the canonical data model shared by every stage of
// the opportunity pipeline: scanner, aggregator, risk manager, queue and
// coordinator all exchange values of these types rather than loosely typed
// maps.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies which arbitrage strategy produced an Opportunity.
type Kind string

const (
	KindCrossExchange Kind = "cross_exchange"
	KindTriangular    Kind = "triangular"
	KindFlashLoan     Kind = "flash_loan"
	KindBackrun       Kind = "backrun"
)

// State is the terminal/non-terminal lifecycle state of an Opportunity.
type State string

const (
	StatePending   State = "pending"
	StateExecuting State = "executing"
	StateSuccess   State = "success"
	StateFailed    State = "failed"
	StateExpired   State = "expired"
	StateRejected  State = "rejected"
	StateCancelled State = "cancelled"
)

// IsTerminal reports whether s is one of the five terminal states.
func (s State) IsTerminal() bool {
	switch s {
	case StateSuccess, StateFailed, StateExpired, StateRejected, StateCancelled:
		return true
	default:
		return false
	}
}

// Loan describes the flash-loan leg of a FlashLoan opportunity.
type Loan struct {
	ProviderID string
	Amount     decimal.Decimal
	FeeUSD     decimal.Decimal
}

// Opportunity is an identified arbitrage candidate. Once it has been handed
// to the Execution Queue its core fields (everything except RiskScore,
// Priority and Confidence) are immutable: re-evaluation produces a new
// Opportunity value, it never mutates one in place.
type Opportunity struct {
	ID         string
	Kind       Kind
	Chain      string
	DetectedAt time.Time // monotonic clock reading, see internal/clock

	Path   []string // token identifiers, len>=2
	Venues []string // len(Venues) == len(Path)-1

	AmountIn          decimal.Decimal
	ExpectedAmountOut decimal.Decimal

	GrossProfitUSD decimal.Decimal
	GasCostUSD     decimal.Decimal
	NetProfitUSD   decimal.Decimal

	PriceImpact  decimal.Decimal // fraction in [0,1]
	LiquidityUSD decimal.Decimal

	RiskScore  float64 // 0-100, higher = riskier
	Priority   int     // 1-10, higher first
	Confidence float64 // 0-100

	Loan *Loan

	State State
}

// Fingerprint is the deduplication key from spec.md §4.3: two opportunities
// with the same (chain, kind, path, venues) collapse to one.
func (o Opportunity) Fingerprint() string {
	s := string(o.Chain) + "|" + string(o.Kind) + "|"
	for _, p := range o.Path {
		s += p + ","
	}
	s += "|"
	for _, v := range o.Venues {
		s += v + ","
	}
	return s
}

// Validate checks the structural invariants from spec.md §3. It does not
// check the risk/profitability gates — those belong to the Aggregator and
// Risk Manager.
func (o Opportunity) Validate() error {
	if o.ID == "" {
		return ErrMissingID
	}
	if len(o.Venues) != len(o.Path)-1 {
		return ErrPathVenueMismatch
	}
	if o.AmountIn.IsNegative() {
		return ErrNegativeAmount
	}
	loanFee := decimal.Zero
	if o.Loan != nil {
		loanFee = o.Loan.FeeUSD
	}
	expected := o.GrossProfitUSD.Sub(o.GasCostUSD).Sub(loanFee)
	if !expected.Equal(o.NetProfitUSD) {
		return ErrNetProfitMismatch
	}
	return nil
}

// Clone returns a deep-enough copy safe to hand to a different owner. Path,
// Venues and Loan are independent slices/pointer so mutation by the new
// owner never reaches back to the original.
func (o Opportunity) Clone() Opportunity {
	cp := o
	cp.Path = append([]string(nil), o.Path...)
	cp.Venues = append([]string(nil), o.Venues...)
	if o.Loan != nil {
		loan := *o.Loan
		cp.Loan = &loan
	}
	return cp
}
