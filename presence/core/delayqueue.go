package core

import (
	"container/heap"
	"math/rand/v2"
	"sync"
	"time"
)

type DelayedItem[T any] struct {
	Key   string
	Due   time.Time
	Value T
}

// DelayQueue releases items once their due time passes. Jitter comes from
// the injected random source and "now" from the injected clock, so the
// schedule is reproducible in tests. Keys are unique while queued.
type DelayQueue[T any] struct {
	mu     sync.Mutex
	items  delayHeap[T]
	queued map[string]struct{}
	now    Clock
	rnd    *rand.Rand
}

func NewDelayQueue[T any](now Clock, rnd *rand.Rand) *DelayQueue[T] {
	if now == nil {
		now = time.Now
	}
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return &DelayQueue[T]{queued: map[string]struct{}{}, now: now, rnd: rnd}
}

// Schedule queues value under key at now plus a uniform jitter in
// [0, maxJitter). It returns false if the key is already queued.
func (q *DelayQueue[T]) Schedule(key string, value T, maxJitter time.Duration) (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.queued[key]; ok {
		return time.Time{}, false
	}
	var jitter time.Duration
	if maxJitter > 0 {
		jitter = time.Duration(q.rnd.Int64N(int64(maxJitter)))
	}
	due := q.now().Add(jitter)
	heap.Push(&q.items, &DelayedItem[T]{Key: key, Due: due, Value: value})
	q.queued[key] = struct{}{}
	return due, true
}

// PopDue removes and returns every item due at or before now, earliest first.
func (q *DelayQueue[T]) PopDue(now time.Time) []DelayedItem[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []DelayedItem[T]
	for q.items.Len() > 0 && !q.items[0].Due.After(now) {
		item := heap.Pop(&q.items).(*DelayedItem[T])
		delete(q.queued, item.Key)
		due = append(due, *item)
	}
	return due
}

// Next reports when the earliest item becomes due.
func (q *DelayQueue[T]) Next() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Len() == 0 {
		return time.Time{}, false
	}
	return q.items[0].Due, true
}

func (q *DelayQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

type delayHeap[T any] []*DelayedItem[T]

func (h delayHeap[T]) Len() int { return len(h) }

func (h delayHeap[T]) Less(i, j int) bool {
	if h[i].Due.Equal(h[j].Due) {
		return h[i].Key < h[j].Key
	}
	return h[i].Due.Before(h[j].Due)
}

func (h delayHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *delayHeap[T]) Push(x any) { *h = append(*h, x.(*DelayedItem[T])) }

func (h *delayHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
