package chainadapter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Mock is an in-memory Adapter used by tests and local/paper runs. It
// mirrors a MockExchange shape: configurable balances, deterministic
// "always succeeds unless told otherwise" receipts, and a health flag an
// operator/test can flip to exercise the Degraded path (spec.md §8
// scenario 6).
type Mock struct {
	mu        sync.RWMutex
	balances  map[string]decimal.Decimal // token -> amount
	healthy   atomic.Bool
	block     atomic.Uint64
	gas       GasPrice
	nextFails bool // if true, the next SendTransaction's receipt reverts
}

// NewMock constructs a healthy Mock adapter with zero balances and a flat
// legacy gas price.
func NewMock() *Mock {
	m := &Mock{
		balances: make(map[string]decimal.Decimal),
		gas:      GasPrice{Legacy: ptr(decimal.NewFromInt(20))},
	}
	m.healthy.Store(true)
	return m
}

func ptr(d decimal.Decimal) *decimal.Decimal { return &d }

func (m *Mock) Initialize(ctx context.Context) error { return nil }
func (m *Mock) Shutdown(ctx context.Context) error    { return nil }

// SetBalance sets the wallet-agnostic balance for token (the mock does not
// model per-wallet accounting).
func (m *Mock) SetBalance(token string, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[token] = amount
}

// SetHealthy flips the adapter's reported health, used to drive scenario 6
// (chain degradation) in tests.
func (m *Mock) SetHealthy(h bool) { m.healthy.Store(h) }

// FailNextTransaction makes the next SendTransaction's receipt revert,
// used to drive the flash-loan revert scenario (spec.md §8 scenario 5).
func (m *Mock) FailNextTransaction() {
	m.mu.Lock()
	m.nextFails = true
	m.mu.Unlock()
}

func (m *Mock) GetBalance(ctx context.Context, token, wallet string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[token], nil
}

func (m *Mock) GetGasPrice(ctx context.Context) (GasPrice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gas, nil
}

func (m *Mock) EstimateGas(ctx context.Context, tx Tx) (uint64, error) {
	return 150_000, nil
}

func (m *Mock) SendTransaction(ctx context.Context, tx Tx, signer Signer) (TxRef, error) {
	return TxRef(fmt.Sprintf("0xmock-%s", uuid.NewString())), nil
}

func (m *Mock) WaitForReceipt(ctx context.Context, ref TxRef, deadline time.Time) (Receipt, error) {
	select {
	case <-ctx.Done():
		return Receipt{}, ctx.Err()
	default:
	}

	m.mu.Lock()
	fails := m.nextFails
	m.nextFails = false
	m.mu.Unlock()

	status := ReceiptSuccess
	if fails {
		status = ReceiptReverted
	}
	m.block.Add(1)
	return Receipt{Status: status, GasUsed: 150_000, BlockNumber: m.block.Load()}, nil
}

func (m *Mock) CurrentBlock(ctx context.Context) (uint64, error) {
	return m.block.Load(), nil
}

func (m *Mock) IsHealthy(ctx context.Context) bool {
	return m.healthy.Load()
}
