package util

import "sync"

// RingBuffer is a fixed-capacity circular buffer. When full, Push evicts and
// returns the oldest element. All methods are safe for concurrent use.
type RingBuffer[T any] struct {
	mu    sync.RWMutex
	buf   []T
	head  int
	count int
}

// NewRingBuffer creates a ring buffer with the given capacity (minimum 1).
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer[T]{buf: make([]T, capacity)}
}

// Push appends item. If the buffer was full, the evicted element is returned
// with ok set.
func (r *RingBuffer[T]) Push(item T) (evicted T, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := (r.head + r.count) % len(r.buf)
	if r.count == len(r.buf) {
		evicted, ok = r.buf[idx], true
		r.head = (r.head + 1) % len(r.buf)
	} else {
		r.count++
	}
	r.buf[idx] = item
	return evicted, ok
}

// Snapshot returns a copy of all elements, oldest first.
func (r *RingBuffer[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

func (r *RingBuffer[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

func (r *RingBuffer[T]) Cap() int {
	return len(r.buf)
}
