// Package errs implements the tagged-variant error taxonomy of spec.md §7.
// Each variant is a distinct Go type satisfying error, never a panic or a
// generic exception — callers use errors.As to recover the variant they
// need (e.g. the Coordinator checking whether a step failure was
// ExecutionAtomicFailed vs ExecutionPartial).
package errs

import "fmt"

// Transient wraps a retryable error from an external collaborator (RPC
// timeout, rate limit, node lag). Retryable is always true for this type —
// it exists to let callers pattern-match on "this is worth retrying".
type Transient struct {
	Source string
	Err    error
}

func (e *Transient) Error() string {
	return fmt.Sprintf("transient error from %s: %v", e.Source, e.Err)
}

func (e *Transient) Unwrap() error { return e.Err }

// QuoteUnavailable means a venue quote call failed; the scanner skips the
// venue and continues, per spec.md §4.2.
type QuoteUnavailable struct {
	Venue string
	Pair  string
	Err   error
}

func (e *QuoteUnavailable) Error() string {
	return fmt.Sprintf("quote unavailable for %s on %s: %v", e.Pair, e.Venue, e.Err)
}

func (e *QuoteUnavailable) Unwrap() error { return e.Err }

// RiskRejected is returned by the Risk Manager when an opportunity fails a
// risk gate; the opportunity transitions to Rejected.
type RiskRejected struct {
	Reason string
}

func (e *RiskRejected) Error() string { return "risk rejected: " + e.Reason }

// Stale means the opportunity aged past its TTL; it transitions to Expired.
type Stale struct {
	Age      string
	MaxAge   string
}

func (e *Stale) Error() string {
	return fmt.Sprintf("opportunity stale: age %s exceeds max %s", e.Age, e.MaxAge)
}

// ExecutionPartial records a multi-step plan that failed mid-way. No
// compensating action is attempted — the loss is recorded as-is.
type ExecutionPartial struct {
	StepIndex int
	Cause     error
}

func (e *ExecutionPartial) Error() string {
	return fmt.Sprintf("execution failed at step %d: %v", e.StepIndex, e.Cause)
}

func (e *ExecutionPartial) Unwrap() error { return e.Cause }

// ExecutionAtomicFailed records an on-chain revert of an atomic (flash-loan)
// call. The whole call rolled back by protocol, so there is no partial
// state to reconcile.
type ExecutionAtomicFailed struct {
	Cause error
}

func (e *ExecutionAtomicFailed) Error() string {
	return fmt.Sprintf("atomic execution reverted: %v", e.Cause)
}

func (e *ExecutionAtomicFailed) Unwrap() error { return e.Cause }

// Timeout records a deadline exceeded at a named stage (step, overall
// execution, shutdown, ...).
type Timeout struct {
	Stage string
}

func (e *Timeout) Error() string { return "timeout at stage: " + e.Stage }

// Fatal records an unrecoverable adapter/config failure. During Start it
// aborts initialization; during runtime it is the signal the Orchestrator
// uses to move a chain to Degraded.
type Fatal struct {
	Cause error
}

func (e *Fatal) Error() string { return fmt.Sprintf("fatal: %v", e.Cause) }

func (e *Fatal) Unwrap() error { return e.Cause }
