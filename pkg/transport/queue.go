package transport

import (
	"context"
	"sync"
	"time"
)

// DefaultQueueSize is the number of buffered events per session.
const DefaultQueueSize = 1024

// Queue buffers events produced by connection goroutines until the owner of
// a Session dispatches them in Process.
type Queue struct {
	h      Handler
	ch     chan func(Handler)
	done   chan struct{}
	closed sync.Once
}

// NewQueue creates a queue dispatching to h.
func NewQueue(h Handler, size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		h:    h,
		ch:   make(chan func(Handler), size),
		done: make(chan struct{}),
	}
}

func (q *Queue) push(ev func(Handler)) {
	select {
	case q.ch <- ev:
	case <-q.done:
	}
}

func (q *Queue) Connected() {
	q.push(func(h Handler) { h.OnConnected() })
}

func (q *Queue) Disconnected(err error) {
	q.push(func(h Handler) { h.OnDisconnected(err) })
}

func (q *Queue) Receipt(r Receipt) {
	q.push(func(h Handler) { h.OnReceipt(r) })
}

func (q *Queue) Message(e Envelope) {
	q.push(func(h Handler) { h.OnMessage(e) })
}

// Process dispatches events until timeout elapses or ctx is done.
func (q *Queue) Process(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ev := <-q.ch:
			ev(q.h)
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close releases producers blocked on a full queue.
func (q *Queue) Close() {
	q.closed.Do(func() {
		close(q.done)
	})
}
