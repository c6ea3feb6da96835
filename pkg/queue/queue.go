// Package queue provides the bounded FIFO work queue that connects producer
// and consumer threads
package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Flow-control sentinels. None of these indicate a broken queue; callers
// branch on them with errors.Is.
var (
	// ErrFull is returned when a bounded queue stays full past the
	// enqueue wait.
	ErrFull = errors.New("queue full")

	// ErrEmpty is returned when no item arrives within the dequeue wait.
	// Consumers treat it as the end of the current drain run.
	ErrEmpty = errors.New("queue empty")

	// ErrTimeout is returned when the caller's context expires while the
	// queue is still waiting.
	ErrTimeout = errors.New("queue wait timed out")

	// ErrClosed is returned for enqueues after Close, and for dequeues
	// once the backlog has drained.
	ErrClosed = errors.New("queue closed")
)

// Config controls capacity and the default blocking waits.
type Config struct {
	// Capacity bounds the backlog; zero or negative means unbounded.
	Capacity int

	// EnqueueWait is how long Enqueue blocks on a full queue before
	// giving up with ErrFull. Zero or negative fails immediately.
	EnqueueWait time.Duration

	// DequeueWait is how long Dequeue blocks on an empty queue before
	// giving up with ErrEmpty. Zero or negative fails immediately.
	DequeueWait time.Duration
}

// Popped slots are zeroed immediately; the backing slice is rebuilt once the
// dead prefix reaches compactMinHead and at least half the slice.
const compactMinHead = 64

// Queue is a FIFO safe for concurrent multi-producer/multi-consumer use.
// Items enqueued by a single goroutine are dequeued in order; there is no
// global order across producers. Ownership of an item transfers to the
// dequeuing goroutine.
//
// A single mutex guards the backlog. Blocked callers park on generation
// channels (arrival, vacancy) that are closed and replaced whenever the
// state they wait on changes; there is no polling.
type Queue[T any] struct {
	cfg Config

	mu      sync.Mutex
	items   []T
	head    int
	closed  bool
	arrival chan struct{} // closed when an item arrives or the queue closes
	vacancy chan struct{} // closed when a slot frees or the queue closes
}

// New creates a queue with the given configuration.
func New[T any](cfg Config) *Queue[T] {
	return &Queue[T]{
		cfg:     cfg,
		arrival: make(chan struct{}),
		vacancy: make(chan struct{}),
	}
}

// Enqueue appends an item, waiting up to EnqueueWait for space on a bounded
// queue. Unbounded queues never report ErrFull.
func (q *Queue[T]) Enqueue(item T) error {
	return q.enqueue(context.Background(), item)
}

// EnqueueContext is Enqueue additionally bounded by ctx; ctx expiry yields
// ErrTimeout.
func (q *Queue[T]) EnqueueContext(ctx context.Context, item T) error {
	return q.enqueue(ctx, item)
}

// Dequeue removes the oldest item, waiting up to DequeueWait for one to
// arrive.
func (q *Queue[T]) Dequeue() (T, error) {
	return q.dequeue(context.Background())
}

// DequeueContext is Dequeue additionally bounded by ctx; ctx expiry yields
// ErrTimeout.
func (q *Queue[T]) DequeueContext(ctx context.Context) (T, error) {
	return q.dequeue(ctx)
}

// Close marks the queue closed and wakes every blocked caller. Enqueues fail
// with ErrClosed from then on; dequeues drain the remaining backlog first.
// Close is idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.arrival)
	close(q.vacancy)
}

// Len returns the current backlog size.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size()
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue[T]) enqueue(ctx context.Context, item T) error {
	var deadline <-chan time.Time
	if q.cfg.EnqueueWait > 0 {
		timer := time.NewTimer(q.cfg.EnqueueWait)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return ErrClosed
		}
		if q.cfg.Capacity <= 0 || q.size() < q.cfg.Capacity {
			q.items = append(q.items, item)
			q.wakeArrivalLocked()
			q.mu.Unlock()
			return nil
		}
		vacancy := q.vacancy
		q.mu.Unlock()

		if q.cfg.EnqueueWait <= 0 {
			return ErrFull
		}
		select {
		case <-vacancy:
			// a slot may have freed, re-check under the lock
		case <-deadline:
			return ErrFull
		case <-ctx.Done():
			return ErrTimeout
		}
	}
}

func (q *Queue[T]) dequeue(ctx context.Context) (T, error) {
	var zero T
	var deadline <-chan time.Time
	if q.cfg.DequeueWait > 0 {
		timer := time.NewTimer(q.cfg.DequeueWait)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		q.mu.Lock()
		if q.size() > 0 {
			item := q.popLocked()
			q.wakeVacancyLocked()
			q.mu.Unlock()
			return item, nil
		}
		if q.closed {
			q.mu.Unlock()
			return zero, ErrClosed
		}
		arrival := q.arrival
		q.mu.Unlock()

		if q.cfg.DequeueWait <= 0 {
			return zero, ErrEmpty
		}
		select {
		case <-arrival:
			// an item may have arrived, re-check under the lock
		case <-deadline:
			return zero, ErrEmpty
		case <-ctx.Done():
			return zero, ErrTimeout
		}
	}
}

func (q *Queue[T]) size() int {
	return len(q.items) - q.head
}

// popLocked removes the head item, zeroing its slot so popped items do not
// pin memory.
func (q *Queue[T]) popLocked() T {
	var zero T
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	if q.head >= compactMinHead && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		for i := n; i < len(q.items); i++ {
			q.items[i] = zero
		}
		q.items = q.items[:n]
		q.head = 0
	}
	return item
}

// wakeArrivalLocked wakes every goroutine parked on an empty queue. After
// Close the channels stay closed and keep waking everyone, so no
// replacement happens.
func (q *Queue[T]) wakeArrivalLocked() {
	if q.closed {
		return
	}
	close(q.arrival)
	q.arrival = make(chan struct{})
}

func (q *Queue[T]) wakeVacancyLocked() {
	if q.closed {
		return
	}
	close(q.vacancy)
	q.vacancy = make(chan struct{})
}
