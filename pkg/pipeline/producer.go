package pipeline

import (
	"context"
	"errors"

	"github.com/strikeline/strikeline/pkg/queue"
)

// Producer originates the items of a pipeline run. Next yields item contexts
// one at a time and reports ErrExhausted when the source has nothing more
// for this run.
type Producer interface {
	Name() string
	Next(ctx context.Context) (*Context, error)
}

// Restartable is implemented by producers whose sequence restarts at the
// beginning of every pipeline run.
type Restartable interface {
	Reset()
}

// QueueProducer drains a queue, binding each dequeued item into a fresh
// context. Empty, closed and timed-out waits all surface as exhaustion, so a
// quiet queue ends the run instead of failing it.
type QueueProducer[T any] struct {
	name string
	q    *queue.Queue[T]
	bind func(item T, c *Context)
}

// NewQueueProducer builds a producer over q. bind stamps each dequeued item
// into the context it will travel the pipeline in.
func NewQueueProducer[T any](name string, q *queue.Queue[T], bind func(item T, c *Context)) *QueueProducer[T] {
	return &QueueProducer[T]{name: name, q: q, bind: bind}
}

func (p *QueueProducer[T]) Name() string { return p.name }

func (p *QueueProducer[T]) Next(ctx context.Context) (*Context, error) {
	item, err := p.q.DequeueContext(ctx)
	switch {
	case err == nil:
	case errors.Is(err, queue.ErrEmpty), errors.Is(err, queue.ErrTimeout), errors.Is(err, queue.ErrClosed):
		return nil, ErrExhausted
	default:
		return nil, err
	}
	c := NewContext()
	p.bind(item, c)
	return c, nil
}

// SliceProducer yields a fixed set of items in order, restarting from the
// first item on every run.
type SliceProducer[T any] struct {
	name  string
	items []T
	bind  func(item T, c *Context)
	next  int
}

// NewSliceProducer builds a restartable producer over items.
func NewSliceProducer[T any](name string, items []T, bind func(item T, c *Context)) *SliceProducer[T] {
	return &SliceProducer[T]{name: name, items: items, bind: bind}
}

func (p *SliceProducer[T]) Name() string { return p.name }

func (p *SliceProducer[T]) Reset() { p.next = 0 }

func (p *SliceProducer[T]) Next(ctx context.Context) (*Context, error) {
	if ctx.Err() != nil || p.next >= len(p.items) {
		return nil, ErrExhausted
	}
	item := p.items[p.next]
	p.next++
	c := NewContext()
	p.bind(item, c)
	return c, nil
}
