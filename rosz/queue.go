package rosz

import (
	"context"
	"sync"
)

// queue is a bounded FIFO that evicts its oldest entry when full. Blocked
// receivers park on a waker channel that is removed again on cancellation.
type queue[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	dropped  uint64
	closed   bool
	wakers   map[uint64]chan struct{}
	nextWake uint64
	onEvict  func(T)
}

func newQueue[T any](capacity int, onEvict func(T)) *queue[T] {
	return &queue[T]{
		capacity: max(capacity, 1),
		wakers:   make(map[uint64]chan struct{}),
		onEvict:  onEvict,
	}
}

// push appends v, evicting the oldest entry when the queue is full. It
// reports whether an entry was evicted. Pushing to a closed queue evicts v.
func (q *queue[T]) push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		if q.onEvict != nil {
			q.onEvict(v)
		}
		return true
	}
	var evicted T
	full := len(q.items) >= q.capacity
	if full {
		evicted = q.items[0]
		var zero T
		q.items[0] = zero
		q.items = q.items[1:]
		q.dropped++
	}
	q.items = append(q.items, v)
	for id, w := range q.wakers {
		close(w)
		delete(q.wakers, id)
	}
	q.mu.Unlock()

	if full && q.onEvict != nil {
		q.onEvict(evicted)
	}
	return full
}

func (q *queue[T]) tryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

func (q *queue[T]) popLocked() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, true
}

// pop blocks until an entry is available, the queue is closed or ctx is done.
func (q *queue[T]) pop(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		if v, ok := q.popLocked(); ok {
			q.mu.Unlock()
			return v, nil
		}
		var zero T
		if q.closed {
			q.mu.Unlock()
			return zero, ErrChannelClosed
		}
		id := q.nextWake
		q.nextWake++
		w := make(chan struct{})
		q.wakers[id] = w
		q.mu.Unlock()

		select {
		case <-w:
		case <-ctx.Done():
			q.mu.Lock()
			delete(q.wakers, id)
			q.mu.Unlock()
			return zero, ctx.Err()
		}
	}
}

// close wakes every receiver and evicts the remaining entries.
func (q *queue[T]) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	rest := q.items
	q.items = nil
	for id, w := range q.wakers {
		close(w)
		delete(q.wakers, id)
	}
	q.mu.Unlock()

	if q.onEvict != nil {
		for _, v := range rest {
			q.onEvict(v)
		}
	}
}

func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *queue[T]) droppedCount() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// waiters returns the number of parked receivers.
func (q *queue[T]) waiters() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.wakers)
}
