// Package chainadapter declares the interface the core consumes from the
// out-of-scope "chain adapter" collaborator (spec.md §6.1). No concrete
// production implementation lives in this repository — RPC clients and
// transaction signing are explicitly out of scope — but a Mock is provided
// for tests and local runs, the same way a MockExchange stands in for a
// live exchange client in integration tests.
package chainadapter

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// GasPrice reports either legacy or EIP-1559 gas pricing; exactly one of
// the two is populated.
type GasPrice struct {
	Legacy *decimal.Decimal

	EIP1559 *EIP1559GasPrice
}

// EIP1559GasPrice is the post-London fee structure.
type EIP1559GasPrice struct {
	BaseFee   decimal.Decimal
	MaxFee    decimal.Decimal
	PriorityFee decimal.Decimal
}

// ReceiptStatus is the post-inclusion outcome of a transaction.
type ReceiptStatus string

const (
	ReceiptSuccess  ReceiptStatus = "success"
	ReceiptReverted ReceiptStatus = "reverted"
)

// Receipt is the post-inclusion record of a transaction's outcome.
type Receipt struct {
	Status      ReceiptStatus
	GasUsed     uint64
	BlockNumber uint64
	Logs        []Log
}

// Log is an opaque decoded event; the adapter is responsible for decoding
// it, the core only inspects fields it was told about out of band (e.g. by
// the strategy's step plan).
type Log struct {
	Topic string
	Data  map[string]any
}

// TxRef is an opaque reference to a submitted transaction (hash, nonce,
// whatever the adapter needs to look it up later).
type TxRef string

// Tx and Signer are opaque to the core; the adapter alone understands
// address/ABI details, per spec.md §6.1.
type Tx any
type Signer any

// Adapter is the per-chain collaborator the core drives. Every method may
// block on network I/O and must be called with a context carrying a
// deadline — the core never calls it without one.
type Adapter interface {
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error

	GetBalance(ctx context.Context, token, wallet string) (decimal.Decimal, error)
	GetGasPrice(ctx context.Context) (GasPrice, error)
	EstimateGas(ctx context.Context, tx Tx) (uint64, error)
	SendTransaction(ctx context.Context, tx Tx, signer Signer) (TxRef, error)
	WaitForReceipt(ctx context.Context, ref TxRef, deadline time.Time) (Receipt, error)
	CurrentBlock(ctx context.Context) (uint64, error)
	IsHealthy(ctx context.Context) bool
}
