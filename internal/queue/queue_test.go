package queue

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainarb/core/internal/types"
)

func oppWithPriority(id string, kind types.Kind, priority int) types.Opportunity {
	return types.Opportunity{
		ID:       id,
		Kind:     kind,
		Chain:    "ethereum",
		Path:     []string{"WETH", "USDC"},
		Venues:   []string{"a", "b"},
		AmountIn: decimal.NewFromInt(1),
		Priority: priority,
	}
}

func TestEnqueueDequeueReturnsHighestPriorityFirst(t *testing.T) {
	q := New(Config{Capacity: map[types.Kind]int{types.KindCrossExchange: 10}})

	q.Enqueue(oppWithPriority("low", types.KindCrossExchange, 2))
	q.Enqueue(oppWithPriority("high", types.KindCrossExchange, 9))
	q.Enqueue(oppWithPriority("mid", types.KindCrossExchange, 5))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	first, ok := q.Dequeue(ctx)
	require.True(t, ok)
	assert.Equal(t, "high", first.ID)

	second, ok := q.Dequeue(ctx)
	require.True(t, ok)
	assert.Equal(t, "mid", second.ID)

	third, ok := q.Dequeue(ctx)
	require.True(t, ok)
	assert.Equal(t, "low", third.ID)
}

func TestEqualPriorityBreaksTieByArrivalOrder(t *testing.T) {
	q := New(Config{Capacity: map[types.Kind]int{types.KindCrossExchange: 10}})
	q.Enqueue(oppWithPriority("first", types.KindCrossExchange, 5))
	q.Enqueue(oppWithPriority("second", types.KindCrossExchange, 5))

	ctx := context.Background()
	a, _ := q.Dequeue(ctx)
	b, _ := q.Dequeue(ctx)
	assert.Equal(t, "first", a.ID)
	assert.Equal(t, "second", b.ID)
}

func TestEnqueueDropsLowestPriorityOnOverflow(t *testing.T) {
	q := New(Config{Capacity: map[types.Kind]int{types.KindCrossExchange: 2}})
	q.Enqueue(oppWithPriority("a", types.KindCrossExchange, 3))
	q.Enqueue(oppWithPriority("b", types.KindCrossExchange, 7))

	dropped := q.Enqueue(oppWithPriority("c", types.KindCrossExchange, 5))
	require.NotNil(t, dropped)
	assert.Equal(t, "a", dropped.ID, "lowest-priority item (a, priority 3) should be evicted")

	ctx := context.Background()
	first, _ := q.Dequeue(ctx)
	second, _ := q.Dequeue(ctx)
	assert.ElementsMatch(t, []string{"b", "c"}, []string{first.ID, second.ID})
}

func TestEnqueueUnconfiguredKindIsRejected(t *testing.T) {
	q := New(Config{Capacity: map[types.Kind]int{types.KindCrossExchange: 2}})
	dropped := q.Enqueue(oppWithPriority("x", types.KindTriangular, 9))
	require.NotNil(t, dropped)
	assert.Equal(t, "x", dropped.ID)
}

func TestDequeueBlocksThenReturnsOnceEnqueued(t *testing.T) {
	q := New(Config{Capacity: map[types.Kind]int{types.KindCrossExchange: 10}})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan types.Opportunity, 1)
	go func() {
		opp, ok := q.Dequeue(ctx)
		if ok {
			done <- opp
		}
	}()

	time.Sleep(50 * time.Millisecond)
	q.Enqueue(oppWithPriority("late", types.KindCrossExchange, 1))

	select {
	case opp := <-done:
		assert.Equal(t, "late", opp.ID)
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not unblock after Enqueue")
	}
}

func TestDequeueReturnsFalseOnContextCancel(t *testing.T) {
	q := New(Config{Capacity: map[types.Kind]int{types.KindCrossExchange: 10}})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok := q.Dequeue(ctx)
	assert.False(t, ok)
}

func TestWeightedRoundRobinFavorsHigherWeightKind(t *testing.T) {
	q := New(Config{
		Capacity: map[types.Kind]int{types.KindCrossExchange: 10, types.KindTriangular: 10},
		Weight:   map[types.Kind]int{types.KindCrossExchange: 3, types.KindTriangular: 1},
	})

	for i := 0; i < 5; i++ {
		q.Enqueue(oppWithPriority("ce", types.KindCrossExchange, 1))
		q.Enqueue(oppWithPriority("tri", types.KindTriangular, 1))
	}

	ctx := context.Background()
	counts := map[types.Kind]int{}
	for i := 0; i < 8; i++ {
		opp, ok := q.Dequeue(ctx)
		require.True(t, ok)
		counts[opp.Kind]++
	}
	assert.Greater(t, counts[types.KindCrossExchange], counts[types.KindTriangular])
}

func TestIndependentQueuesOneDoesNotStarveAnother(t *testing.T) {
	q := New(Config{Capacity: map[types.Kind]int{types.KindCrossExchange: 10, types.KindFlashLoan: 10}})
	q.Enqueue(oppWithPriority("flash", types.KindFlashLoan, 9))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	opp, ok := q.Dequeue(ctx)
	require.True(t, ok)
	assert.Equal(t, "flash", opp.ID)
}

func TestDepthsReportsPerKindLength(t *testing.T) {
	q := New(Config{Capacity: map[types.Kind]int{types.KindCrossExchange: 10, types.KindTriangular: 10}})
	q.Enqueue(oppWithPriority("a", types.KindCrossExchange, 1))
	q.Enqueue(oppWithPriority("b", types.KindCrossExchange, 1))
	q.Enqueue(oppWithPriority("c", types.KindTriangular, 1))

	depths := q.Depths()
	assert.Equal(t, 2, depths[types.KindCrossExchange])
	assert.Equal(t, 1, depths[types.KindTriangular])
}
