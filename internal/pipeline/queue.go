package pipeline

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrFull is returned by Put when no capacity frees up in time. The
	// caller decides whether to drop the item or retry.
	ErrFull = errors.New("queue full")
	// ErrEmpty is returned by Get when no item arrives in time.
	ErrEmpty = errors.New("queue empty")
	// ErrClosed is returned once the queue has been shut down. A consumer
	// observing it stops its loop.
	ErrClosed = errors.New("queue closed")
)

// BoundedQueue is a fixed-capacity FIFO with blocking-with-timeout put/get
// semantics. Every inter-stage channel in the pipeline is one of these, so
// enqueued-but-unconsumed items can never exceed the configured capacity.
type BoundedQueue[T any] struct {
	ch        chan T
	done      chan struct{}
	closeOnce sync.Once
}

func NewBoundedQueue[T any](capacity int) *BoundedQueue[T] {
	return &BoundedQueue[T]{
		ch:   make(chan T, capacity),
		done: make(chan struct{}),
	}
}

// Put enqueues item, blocking up to timeout for capacity. It returns ErrFull
// on timeout and ErrClosed after shutdown.
func (q *BoundedQueue[T]) Put(item T, timeout time.Duration) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case q.ch <- item:
		return nil
	case <-q.done:
		return ErrClosed
	case <-timer.C:
		return ErrFull
	}
}

// Get dequeues the oldest item, blocking up to timeout. It returns ErrEmpty
// on timeout and ErrClosed after shutdown.
func (q *BoundedQueue[T]) Get(timeout time.Duration) (T, error) {
	var zero T

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case item := <-q.ch:
		return item, nil
	case <-q.done:
		return zero, ErrClosed
	case <-timer.C:
		return zero, ErrEmpty
	}
}

// TryGet dequeues without blocking.
func (q *BoundedQueue[T]) TryGet() (T, bool) {
	var zero T
	select {
	case item := <-q.ch:
		return item, true
	default:
		return zero, false
	}
}

// PutLatest enqueues item, evicting the oldest entry when full. Used for the
// preview channel, where only the newest frame matters.
func (q *BoundedQueue[T]) PutLatest(item T) {
	for {
		select {
		case <-q.done:
			return
		case q.ch <- item:
			return
		default:
		}
		select {
		case <-q.ch:
		default:
		}
	}
}

// Close drains pending items and wakes every blocked producer and consumer.
// Safe to call more than once.
func (q *BoundedQueue[T]) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
		for {
			select {
			case <-q.ch:
			default:
				return
			}
		}
	})
}

func (q *BoundedQueue[T]) Len() int {
	return len(q.ch)
}

func (q *BoundedQueue[T]) Cap() int {
	return cap(q.ch)
}
