package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainarb/core/internal/chainadapter"
	"github.com/chainarb/core/internal/types"
	"github.com/chainarb/core/internal/venue"
)

// step is one ordered unit of an execution plan, per spec.md §4.6.5.
// Steps within one opportunity always run strictly in plan order; there is
// no ordering guarantee across opportunities. run reports the gas used by
// its receipt (0 if the step never reached a receipt, e.g. check_balance).
type step struct {
	name string
	run  func(ctx context.Context) (chainadapter.TxRef, uint64, error)
}

// approveTx and flashLoanTx (like the swap values returned by a venue's
// BuildSwap) are opaque values handed to the Chain Adapter's
// SendTransaction — the adapter alone understands how to turn them into a
// signed, submittable transaction (spec.md §6.1); the coordinator never
// inspects chain-specific calldata.
type approveTx struct {
	Token string
	Venue string
	Amount decimal.Decimal
}

type flashLoanTx struct {
	ProviderID string
	Amount     decimal.Decimal
	Path       []string
	Venues     []string
}

// planFor derives the ordered step list for opp's kind, per spec.md §4.6.5.
func (c *Coordinator) planFor(opp types.Opportunity) []step {
	switch opp.Kind {
	case types.KindFlashLoan:
		return c.flashLoanPlan(opp)
	case types.KindTriangular:
		return c.triangularPlan(opp)
	default: // CrossExchange and Backrun both resolve to a direct two-leg swap
		return c.crossExchangePlan(opp)
	}
}

func (c *Coordinator) crossExchangePlan(opp types.Opportunity) []step {
	tokenA, tokenB := opp.Path[0], opp.Path[1]
	venueA, venueB := opp.Venues[0], opp.Venues[0]
	if len(opp.Venues) > 1 {
		venueB = opp.Venues[1]
	}

	return []step{
		{name: "check_balance", run: func(ctx context.Context) (chainadapter.TxRef, uint64, error) {
			_, err := c.chains[opp.Chain].GetBalance(ctx, tokenA, "")
			return "", 0, err
		}},
		{name: "approve_" + tokenA, run: c.approveStep(opp.Chain, tokenA, venueA, opp.AmountIn)},
		{name: "swap_" + venueA, run: c.swapStep(opp.Chain, venueA, types.Pair{TokenA: tokenA, TokenB: tokenB}, opp.AmountIn)},
		{name: "approve_" + tokenB, run: c.approveStep(opp.Chain, tokenB, venueB, opp.ExpectedAmountOut)},
		{name: "swap_" + venueB, run: c.swapStep(opp.Chain, venueB, types.Pair{TokenA: tokenB, TokenB: tokenA}, opp.ExpectedAmountOut)},
	}
}

// triangularPlan walks the cycle hop by hop. The corpus's chain adapters
// expose no "ContractExecutor" abstraction for a single atomic multi-swap
// call, so every triangular opportunity is executed as N sequential swaps
// per spec.md §4.6.5's fallback branch.
func (c *Coordinator) triangularPlan(opp types.Opportunity) []step {
	steps := make([]step, 0, len(opp.Venues))
	amount := opp.AmountIn
	for i, v := range opp.Venues {
		pair := types.Pair{TokenA: opp.Path[i], TokenB: opp.Path[i+1]}
		steps = append(steps, step{
			name: fmt.Sprintf("swap_hop_%d_%s", i, v),
			run:  c.swapStep(opp.Chain, v, pair, amount),
		})
	}
	return steps
}

// flashLoanPlan is a single atomic step: borrow, swap, swap, repay all
// happen inside one on-chain call, so there is no partial state to
// observe — it either succeeds whole or reverts whole.
func (c *Coordinator) flashLoanPlan(opp types.Opportunity) []step {
	providerID := ""
	if opp.Loan != nil {
		providerID = opp.Loan.ProviderID
	}
	tx := flashLoanTx{ProviderID: providerID, Path: opp.Path, Venues: opp.Venues}
	if opp.Loan != nil {
		tx.Amount = opp.Loan.Amount
	}
	return []step{
		{name: "flash_loan_execute", run: func(ctx context.Context) (chainadapter.TxRef, uint64, error) {
			return c.sendAndWait(ctx, opp.Chain, tx)
		}},
	}
}

func (c *Coordinator) approveStep(chain, token, venueName string, amount decimal.Decimal) func(context.Context) (chainadapter.TxRef, uint64, error) {
	return func(ctx context.Context) (chainadapter.TxRef, uint64, error) {
		return c.sendAndWait(ctx, chain, approveTx{Token: token, Venue: venueName, Amount: amount})
	}
}

func (c *Coordinator) swapStep(chain, venueName string, pair types.Pair, amountIn decimal.Decimal) func(context.Context) (chainadapter.TxRef, uint64, error) {
	return func(ctx context.Context) (chainadapter.TxRef, uint64, error) {
		v, ok := c.venues[venueName]
		if !ok {
			return "", 0, fmt.Errorf("unknown venue %q", venueName)
		}
		tx, err := v.BuildSwap(ctx, pair, venue.DirectionAToB, amountIn, decimal.Zero, "", time.Now().Add(c.cfg.StepDeadline).Unix())
		if err != nil {
			return "", 0, err
		}
		return c.sendAndWait(ctx, chain, tx)
	}
}

// sendAndWait submits tx through the chain's adapter and waits for its
// receipt, both bounded by stepDeadline. A reverted receipt is reported as
// an error so the caller (runPlan) can classify it per spec.md §4.6.6/7;
// its gas is still returned since a revert still burns gas on-chain.
func (c *Coordinator) sendAndWait(ctx context.Context, chain string, tx chainadapter.Tx) (chainadapter.TxRef, uint64, error) {
	stepCtx, cancel := context.WithTimeout(ctx, c.cfg.StepDeadline)
	defer cancel()

	adapter := c.chains[chain]
	ref, err := adapter.SendTransaction(stepCtx, tx, nil)
	if err != nil {
		return ref, 0, err
	}
	receipt, err := adapter.WaitForReceipt(stepCtx, ref, time.Now().Add(c.cfg.StepDeadline))
	if err != nil {
		return ref, 0, err
	}
	if receipt.Status == chainadapter.ReceiptReverted {
		return ref, receipt.GasUsed, fmt.Errorf("transaction %s reverted", ref)
	}
	return ref, receipt.GasUsed, nil
}

// runPlan executes steps strictly in order, stopping at the first error
// per spec.md §4.6.6/7: "no compensating on-chain actions" on partial
// failure — whatever has already landed on-chain stays landed.
func (c *Coordinator) runPlan(ctx context.Context, opp types.Opportunity, plan []step) ([]chainadapter.TxRef, uint64, error) {
	var refs []chainadapter.TxRef
	var gasUsed uint64

	for _, s := range plan {
		ref, gas, err := s.run(ctx)
		gasUsed += gas
		if ref != "" {
			refs = append(refs, ref)
		}
		if err != nil {
			return refs, gasUsed, err
		}
	}
	return refs, gasUsed, nil
}
