// Package util
//
// This file provides an unbounded multi-producer single-consumer event queue.
//
// Columns push one event per commit (and on explicit refresh requests) without
// ever blocking the writer. A single goroutine drains the queue through Recv().
//
// Features and Guarantees:
//
//   - Lock-free Push: producers append with CAS on the tail node
//   - Unbounded: a slow consumer never blocks a commit
//   - Single consumer: items are delivered on the channel returned by Recv()
//   - Close() stops new pushes; already queued events are still delivered
//   - No strict FIFO across producers: ordering follows CAS completion
package util

import (
	"runtime"
	"sync"
	"sync/atomic"
)

type eventNode[T any] struct {
	value T
	next  atomic.Pointer[eventNode[T]]
}

// EventQueue is an unbounded MPSC queue backed by a linked list of nodes.
type EventQueue[T any] struct {
	head   atomic.Pointer[eventNode[T]] // sentinel, owned by the consumer
	tail   atomic.Pointer[eventNode[T]]
	out    chan T
	closed atomic.Bool
	done   chan struct{}

	mu   sync.Mutex
	cond *sync.Cond
}

// NewEventQueue creates a queue and starts the goroutine that feeds Recv().
func NewEventQueue[T any]() *EventQueue[T] {
	sentinel := &eventNode[T]{}

	q := &EventQueue[T]{
		out:  make(chan T),
		done: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	go q.consume()
	return q
}

// Push appends an event. Returns false if the queue is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *EventQueue[T]) Push(value T) bool {
	if q.closed.Load() {
		return false
	}

	n := &eventNode[T]{value: value}
	spins := 0

	for {
		tail := q.tail.Load()
		next := tail.next.Load()

		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				// a failed CAS here means another producer already moved the tail
				q.tail.CompareAndSwap(tail, n)
				q.signal()
				return true
			}
		} else {
			q.tail.CompareAndSwap(tail, next)
		}

		// spin briefly under contention, then yield
		if spins < 8 {
			spins++
			continue
		}
		runtime.Gosched()
	}
}

func (q *EventQueue[T]) signal() {
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// consume moves events from the list to the output channel until the queue is closed and drained.
func (q *EventQueue[T]) consume() {
	defer close(q.done)
	defer close(q.out)

	var zero T
	for {
		delivered := false

		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			delivered = true

			value := next.value
			q.head.Store(next)
			q.out <- value
			next.value = zero // release the payload for the gc
		}

		if !delivered && q.closed.Load() {
			return
		}

		if !delivered {
			q.mu.Lock()
			if q.head.Load().next.Load() == nil && !q.closed.Load() {
				q.cond.Wait()
			}
			q.mu.Unlock()
		}
	}
}

// Recv returns the channel events are delivered on. It is closed after Close once all events were delivered.
func (q *EventQueue[T]) Recv() <-chan T {
	return q.out
}

// Close stops accepting events. Queued events are still delivered.
func (q *EventQueue[T]) Close() {
	q.closed.Store(true)
	q.signal()
}

// Done is closed when the feeding goroutine has exited.
func (q *EventQueue[T]) Done() <-chan struct{} {
	return q.done
}

// IsClosed reports whether Close was called.
func (q *EventQueue[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns the number of events not yet handed to the channel.
// This is O(n) and only meant for debugging and tests.
func (q *EventQueue[T]) Len() int {
	count := 0
	for cur := q.head.Load().next.Load(); cur != nil; cur = cur.next.Load() {
		count++
	}
	return count
}
