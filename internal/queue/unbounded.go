// Package queue provides the FIFO hand-off between producers that must never
// block and a single consumer goroutine.
package queue

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Push after Close.
var ErrClosed = errors.New("queue closed")

// Unbounded is a FIFO with a non-blocking Push and a single consumer reading
// from Out. Close acts as the shutdown sentinel: items pushed before Close
// are still delivered, then Out is closed.
type Unbounded[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	wake   chan struct{}
	out    chan T
}

// NewUnbounded starts the bridging goroutine and returns the queue.
func NewUnbounded[T any]() *Unbounded[T] {
	q := &Unbounded[T]{
		wake: make(chan struct{}, 1),
		out:  make(chan T),
	}
	go q.run()
	return q
}

// Push appends item. It never blocks on the consumer.
func (q *Unbounded[T]) Push(item T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Out is the consumer side. It is closed once Close was called and every
// earlier item has been received.
func (q *Unbounded[T]) Out() <-chan T {
	return q.out
}

// Close stops accepting items. Safe to call more than once.
func (q *Unbounded[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Len returns the number of items waiting to be received.
func (q *Unbounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Unbounded[T]) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Unbounded[T]) run() {
	defer close(q.out)
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		item := q.items[0]
		var zero T
		q.items[0] = zero
		q.items = q.items[1:]
		q.mu.Unlock()

		q.out <- item
	}
}
