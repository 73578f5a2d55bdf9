package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainarb/core/internal/types"
)

type mockSink struct {
	mu      sync.Mutex
	name    string
	err     error
	results []types.ExecutionResult
}

func newMockSink(name string, err error) *mockSink { return &mockSink{name: name, err: err} }

func (m *mockSink) Name() string { return m.name }

func (m *mockSink) Send(ctx context.Context, result types.ExecutionResult, opp types.Opportunity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
	return m.err
}

func (m *mockSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}

func sampleResult(id string, success bool) types.ExecutionResult {
	return types.ExecutionResult{
		OpportunityID:     id,
		Success:           success,
		RealizedProfitUSD: decimal.NewFromInt(5),
		FinalState:        types.StateSuccess,
		RecordedAt:        time.Now(),
	}
}

func TestHubNotifyDeliversToEverySink(t *testing.T) {
	hub := NewHub(time.Second, zerolog.Nop())
	s1 := newMockSink("a", nil)
	s2 := newMockSink("b", nil)
	hub.Subscribe(s1)
	hub.Subscribe(s2)

	hub.Notify(sampleResult("opp-1", true), types.Opportunity{ID: "opp-1", Kind: types.KindCrossExchange})

	assert.Equal(t, 1, s1.count())
	assert.Equal(t, 1, s2.count())
}

func TestHubNotifyContinuesAfterSinkError(t *testing.T) {
	hub := NewHub(time.Second, zerolog.Nop())
	failing := newMockSink("failing", errors.New("boom"))
	ok := newMockSink("ok", nil)
	hub.Subscribe(failing)
	hub.Subscribe(ok)

	require.NotPanics(t, func() {
		hub.Notify(sampleResult("opp-2", false), types.Opportunity{ID: "opp-2"})
	})

	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 1, ok.count())
}

func TestHubSubscribeIsCopyOnWrite(t *testing.T) {
	hub := NewHub(time.Second, zerolog.Nop())
	first := *hub.sinks.Load()
	hub.Subscribe(newMockSink("late", nil))
	second := *hub.sinks.Load()

	assert.Len(t, first, 0, "snapshot taken before Subscribe must be unaffected")
	assert.Len(t, second, 1)
}

func TestSummaryFormatsSuccessAndFailure(t *testing.T) {
	success := sampleResult("x", true)
	assert.Contains(t, Summary(success), "success")
	assert.Contains(t, Summary(success), "5.00")

	failure := types.ExecutionResult{FinalState: types.StateFailed, Error: errors.New("timeout at stage: execution")}
	assert.Contains(t, Summary(failure), "failed")
	assert.Contains(t, Summary(failure), "timeout")
}

func TestLogSinkNeverErrors(t *testing.T) {
	sink := NewLogSink(zerolog.Nop())
	err := sink.Send(context.Background(), sampleResult("opp-3", true), types.Opportunity{Kind: types.KindTriangular})
	require.NoError(t, err)
	assert.Equal(t, "log", sink.Name())
}
