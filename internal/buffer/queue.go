// Package buffer provides a FIFO whose producers never wait for its consumer.
package buffer

import (
	"context"
	"sync"
)

// Queue is a FIFO with unlimited capacity. Push never blocks. One consumer takes items
// with Pop in the order they were pushed.
//
// Usage:
//
//	q := buffer.NewQueue[Record]()
//	go func() {
//	    for {
//	        rec, ok := q.Pop(ctx)
//	        if !ok {
//	            return
//	        }
//	        handle(rec)
//	    }
//	}()
//	q.Push(rec) // never blocks
//	q.Close()   // Pop drains what is left, then reports !ok
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool

	// ready holds a token while items are queued or the queue is closed.
	ready chan struct{}
}

// NewQueue creates an empty, open queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

// Push appends item. It reports false, and drops the item, once the queue is closed.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, item)
	q.wake()
	return true
}

// Pop waits for the next item. ok is false when the queue is closed and drained, or
// when ctx ends first.
func (q *Queue[T]) Pop(ctx context.Context) (item T, ok bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item = q.items[0]
			var zero T
			q.items[0] = zero
			q.items = q.items[1:]
			if len(q.items) > 0 {
				q.wake()
			}
			q.mu.Unlock()
			return item, true
		}
		if q.closed {
			q.wake()
			q.mu.Unlock()
			return item, false
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-ctx.Done():
			return item, false
		}
	}
}

// Close stops Push from accepting items. Items already queued are still handed out by
// Pop. Safe to call more than once.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.wake()
}

// Len returns the number of items waiting.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// wake leaves a token for a waiting Pop. Caller holds q.mu.
func (q *Queue[T]) wake() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
