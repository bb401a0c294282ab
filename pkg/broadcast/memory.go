package broadcast

import (
	"context"
	"sync"
)

// Hub is an in-process fan-out of values of type T.
// Publishing never blocks: a subscription with a full buffer is ended with
// ErrSlowSubscriber and the client is expected to resync.
type Hub[T any] struct {
	mu     sync.Mutex
	subs   map[*subscription[T]]struct{}
	size   int
	closed bool
	wg     sync.WaitGroup
	done   chan struct{}
}

// NewHub creates a hub whose subscriptions buffer up to size values (minimum 1).
func NewHub[T any](size int) *Hub[T] {
	return &Hub[T]{
		subs: make(map[*subscription[T]]struct{}),
		size: max(size, 1),
		done: make(chan struct{}),
	}
}

// Subscribe registers a subscription that ends with ctx.
// A closed hub returns a subscription that has already ended with ErrClosed.
func (h *Hub[T]) Subscribe(ctx context.Context) Subscription[T] {
	sub := newSubscription[T](h.size)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.finish(ErrClosed)
		return sub
	}
	h.subs[sub] = struct{}{}

	if ctx.Done() != nil {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			select {
			case <-ctx.Done():
				h.drop(sub, nil)
			case <-h.done:
			}
		}()
	}
	return sub
}

// Publish queues v on every live subscription and returns how many accepted it.
func (h *Hub[T]) Publish(v T) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for sub := range h.subs {
		if sub.offer(v) {
			delivered++
			continue
		}
		delete(h.subs, sub)
		sub.finish(ErrSlowSubscriber)
	}
	return delivered
}

// Len returns the number of live subscriptions.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription with ErrClosed. Idempotent.
func (h *Hub[T]) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	close(h.done)
	for sub := range h.subs {
		sub.finish(ErrClosed)
	}
	clear(h.subs)
	h.mu.Unlock()

	h.wg.Wait()
	return nil
}

func (h *Hub[T]) drop(sub *subscription[T], reason error) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
	sub.finish(reason)
}
