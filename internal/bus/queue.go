// Package bus provides the in-process event queues. Each queue has a
// single dedicated consumer, which is the serialization point for the
// engine's ordering guarantees.
package bus

import (
	"context"
	"errors"
	"sync/atomic"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// Queue is a buffered event queue with one consumer.
type Queue[T any] struct {
	ch     chan T
	closed atomic.Bool
}

// NewQueue allocates a queue with the given capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// Publish enqueues an event, blocking until there is room. Events are
// never dropped on this path.
func (q *Queue[T]) Publish(ctx context.Context, e T) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- e:
		return nil
	}
}

// TryPublish enqueues an event without blocking.
func (q *Queue[T]) TryPublish(e T) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len returns the number of buffered events.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Close stops the queue from accepting new events.
func (q *Queue[T]) Close() {
	if q.closed.CompareAndSwap(false, true) {
		close(q.ch)
	}
}

// Run consumes events until the context is done or the queue is closed.
func (q *Queue[T]) Run(ctx context.Context, handler func(T)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.ch:
			if !ok {
				return
			}
			handler(e)
		}
	}
}
