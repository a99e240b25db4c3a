package utils

import (
	"errors"
	"sync"
)

var ErrQueueEmpty = errors.New("queue is empty")

// Queue is a thread-safe FIFO. The popup controller keeps the selected fees in
// one so the progress view can read it while the run loop drains it.
type Queue[T any] struct {
	items []T
	mutex sync.Mutex
}

// NewQueue creates a queue holding items in the given order.
func NewQueue[T any](items ...T) *Queue[T] {
	q := &Queue[T]{items: make([]T, 0, len(items))}
	q.items = append(q.items, items...)
	return q
}

func (q *Queue[T]) Dequeue() (T, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, ErrQueueEmpty
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, nil
}

// Peek returns the item at the given offset from the front without removing it
func (q *Queue[T]) Peek(offset int) (T, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	var zero T
	if offset < 0 || offset >= len(q.items) {
		return zero, false
	}
	return q.items[offset], true
}

func (q *Queue[T]) IsEmpty() bool {
	return q.Size() == 0
}

// Size returns the number of items in the queue
func (q *Queue[T]) Size() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.items)
}

// Items returns a copy of the queued items in order.
func (q *Queue[T]) Items() []T {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	out := make([]T, len(q.items))
	copy(out, q.items)
	return out
}
