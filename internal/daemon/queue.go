package daemon

import (
	"context"
	"errors"
	"sync"

	"github.com/runnerr0/dwell/internal/tracker"
)

var (
	// ErrQueueFull is returned by Submit when the worker has fallen behind.
	ErrQueueFull = errors.New("event queue full")
	// ErrQueueClosed is returned by Submit after Close.
	ErrQueueClosed = errors.New("event queue closed")
)

// HandlerFunc processes one event on the worker goroutine.
type HandlerFunc func(ctx context.Context, ev tracker.Event)

// Queue is a bounded FIFO drained by a single worker, so events reach the
// tracker one at a time and in arrival order.
type Queue struct {
	mu     sync.RWMutex
	ch     chan tracker.Event
	closed bool
	done   chan struct{}
	handle HandlerFunc
}

func NewQueue(size int, handle HandlerFunc) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{
		ch:     make(chan tracker.Event, size),
		done:   make(chan struct{}),
		handle: handle,
	}
}

// Submit enqueues ev without blocking.
func (q *Queue) Submit(ev tracker.Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run processes events until the queue is closed and drained, or until ctx
// is cancelled. Call it from exactly one goroutine.
func (q *Queue) Run(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case ev, ok := <-q.ch:
			if !ok {
				return
			}
			q.handle(ctx, ev)
		case <-ctx.Done():
			return
		}
	}
}

// Close stops accepting events. Already queued events are still processed.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// Done is closed when Run returns.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Len reports how many events are waiting.
func (q *Queue) Len() int {
	return len(q.ch)
}
