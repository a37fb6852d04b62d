// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

// Package queue provides the mutex-guarded FIFO every Monolith worker
// drains in bounded bursts. Workers copy a burst out under the lock and
// process it outside the lock, so the queue is never held across I/O.
package queue

import "sync"

// Queue is a FIFO of T guarded by a single mutex. The zero value is
// ready to use. All methods are safe for concurrent use.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends item at the tail.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

// PopN removes and returns up to n items from the head, in submission
// order. Returns nil when the queue is empty or n <= 0.
func (q *Queue[T]) PopN(n int) []T {
	if n <= 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	if n > len(q.items) {
		n = len(q.items)
	}
	burst := make([]T, n)
	copy(burst, q.items[:n])
	q.items = q.items[n:]
	// Reclaim the backing array once the live window has drifted far
	// enough; otherwise a long-lived queue pins every item ever pushed.
	if cap(q.items) > 1024 && len(q.items) < cap(q.items)/4 {
		compact := make([]T, len(q.items))
		copy(compact, q.items)
		q.items = compact
	}
	return burst
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// DropOldest discards up to n items from the head and returns how many
// were dropped. Used for overflow back-pressure.
func (q *Queue[T]) DropOldest(n int) int {
	if n <= 0 {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if n > len(q.items) {
		n = len(q.items)
	}
	q.items = q.items[n:]
	return n
}

// DrainAll removes and returns every queued item. The queue's backing
// array is released, so residual drains do not pin memory.
func (q *Queue[T]) DrainAll() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}
