// Package queue implements the Execution Queue (spec.md §4.5, C8):
// bounded priority queues, one per strategy kind, with non-blocking
// enqueue (drop-lowest-priority on overflow), blocking dequeue, and a
// weighted round-robin across kinds so one slow strategy cannot starve
// another.
package queue

import (
	"container/heap"
	"context"
	"sync"

	"github.com/chainarb/core/internal/types"
)

// item is one heap entry: an Opportunity plus a monotonically increasing
// sequence number used to break priority ties in favor of the earliest
// enqueue (oldest-first among equal priority), matching spec.md §4.3's
// tie-break rule carried through to dequeue order.
type item struct {
	opp types.Opportunity
	seq uint64
}

// priorityHeap is a max-heap on Opportunity.Priority, oldest-seq-first on
// ties. No pack library in the corpus offers a priority queue; this is a
// textbook container/heap.Interface implementation, the idiomatic stdlib
// tool for exactly this job.
type priorityHeap []item

func (h priorityHeap) Len() int { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	if h[i].opp.Priority != h[j].opp.Priority {
		return h[i].opp.Priority > h[j].opp.Priority
	}
	return h[i].seq < h[j].seq
}
func (h priorityHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *priorityHeap) Push(x any)   { *h = append(*h, x.(item)) }
func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Kind queue is one bounded priority queue for a single strategy kind.
type kindQueue struct {
	mu       sync.Mutex
	heap     priorityHeap
	capacity int
	nextSeq  uint64
	notEmpty chan struct{} // signaled (non-blocking) whenever an item is enqueued
}

func newKindQueue(capacity int) *kindQueue {
	return &kindQueue{capacity: capacity, notEmpty: make(chan struct{}, 1)}
}

// enqueue inserts opp; if the queue is at capacity, the lowest-priority
// item (the heap's current minimum) is dropped to make room, per spec.md
// §4.5's overflow policy.
func (q *kindQueue) enqueue(opp types.Opportunity) (dropped *types.Opportunity) {
	q.mu.Lock()
	defer q.mu.Unlock()

	it := item{opp: opp, seq: q.nextSeq}
	q.nextSeq++

	if len(q.heap) >= q.capacity {
		dropped = evictLowestPriority(&q.heap)
	}
	heap.Push(&q.heap, it)

	select {
	case q.notEmpty <- struct{}{}:
	default:
	}
	return dropped
}

// evictLowestPriority removes and returns the lowest-priority item in h
// (highest index under the max-heap ordering is not guaranteed, so this
// does a linear scan — capacities are small, O(capacity) is fine).
func evictLowestPriority(h *priorityHeap) *types.Opportunity {
	if len(*h) == 0 {
		return nil
	}
	worst := 0
	for i := 1; i < len(*h); i++ {
		if (*h)[i].opp.Priority < (*h)[worst].opp.Priority {
			worst = i
		}
	}
	removed := (*h)[worst].opp
	heap.Remove(h, worst)
	return &removed
}

// tryDequeue pops the highest-priority item, or reports false if empty.
func (q *kindQueue) tryDequeue() (types.Opportunity, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) == 0 {
		return types.Opportunity{}, false
	}
	it := heap.Pop(&q.heap).(item)
	return it.opp, true
}

func (q *kindQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// Queues owns one kindQueue per configured strategy kind and performs the
// weighted round-robin dequeue across them.
type Queues struct {
	kinds   []types.Kind
	weights map[types.Kind]int
	queues  map[types.Kind]*kindQueue
	order   []types.Kind // precomputed weighted visiting order, fixed for the life of Queues

	rrMu   sync.Mutex
	cursor int // next index into order to try, persisted across Dequeue calls

	wake chan struct{}
}

// Config configures capacity and round-robin weight per strategy kind.
type Config struct {
	Capacity map[types.Kind]int
	Weight   map[types.Kind]int // defaults to 1 if unset
}

// New builds Queues from cfg.
func New(cfg Config) *Queues {
	q := &Queues{
		weights: make(map[types.Kind]int),
		queues:  make(map[types.Kind]*kindQueue),
		wake:    make(chan struct{}, 1),
	}
	for kind, capacity := range cfg.Capacity {
		q.kinds = append(q.kinds, kind)
		q.queues[kind] = newKindQueue(capacity)
		w := cfg.Weight[kind]
		if w <= 0 {
			w = 1
		}
		q.weights[kind] = w
	}
	q.order = q.weightedOrder()
	return q
}

// Enqueue is non-blocking; on overflow the lowest-priority item in that
// kind's queue is dropped and returned.
func (q *Queues) Enqueue(opp types.Opportunity) (dropped *types.Opportunity) {
	kq, ok := q.queues[opp.Kind]
	if !ok {
		return &opp // unconfigured kind: reject outright by returning it as "dropped"
	}
	dropped = kq.enqueue(opp)
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return dropped
}

// Dequeue blocks until an item is ready across any kind (weighted
// round-robin) or ctx is cancelled.
func (q *Queues) Dequeue(ctx context.Context) (types.Opportunity, bool) {
	for {
		if opp, ok := q.roundRobinPop(); ok {
			return opp, true
		}
		select {
		case <-ctx.Done():
			return types.Opportunity{}, false
		case <-q.wake:
		}
	}
}

// roundRobinPop walks q.order starting from the persisted cursor, trying
// each kindQueue in turn, and advances the cursor to just past whichever
// entry yielded an item — so the next call resumes where this one left
// off instead of always restarting at order[0]. That persisted cursor is
// what makes configured Weight actually bias dequeue order: without it,
// whichever kind happens to sit first in q.order would win every call.
func (q *Queues) roundRobinPop() (types.Opportunity, bool) {
	q.rrMu.Lock()
	defer q.rrMu.Unlock()

	n := len(q.order)
	if n == 0 {
		return types.Opportunity{}, false
	}
	for i := 0; i < n; i++ {
		idx := (q.cursor + i) % n
		kind := q.order[idx]
		if opp, ok := q.queues[kind].tryDequeue(); ok {
			q.cursor = (idx + 1) % n
			return opp, true
		}
	}
	return types.Opportunity{}, false
}

// weightedOrder expands each kind w times (w = its configured weight) and
// interleaves them so higher-weight kinds are checked more often per
// round without ever starving a weight-1 kind. Computed once in New and
// then walked cyclically by roundRobinPop via the persisted cursor.
func (q *Queues) weightedOrder() []types.Kind {
	maxWeight := 0
	for _, k := range q.kinds {
		if q.weights[k] > maxWeight {
			maxWeight = q.weights[k]
		}
	}
	var order []types.Kind
	for round := 0; round < maxWeight; round++ {
		for _, k := range q.kinds {
			if round < q.weights[k] {
				order = append(order, k)
			}
		}
	}
	return order
}

// Depths reports the current length of each kind's queue, for Health().
func (q *Queues) Depths() map[types.Kind]int {
	out := make(map[types.Kind]int, len(q.kinds))
	for _, k := range q.kinds {
		out[k] = q.queues[k].len()
	}
	return out
}
