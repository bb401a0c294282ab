package broadcast

import (
	"errors"
	"sync"
)

var (
	// ErrSlowSubscriber ends a subscription whose buffer was full on publish.
	ErrSlowSubscriber = errors.New("broadcast: subscriber too slow")
	// ErrClosed ends subscriptions of a closed or evicted broadcaster.
	ErrClosed = errors.New("broadcast: broadcaster closed")
)

// Subscription receives values published after it was created.
type Subscription[T any] interface {
	// C is closed when the subscription ends; Err then reports why.
	C() <-chan T

	// Err is nil while the subscription is active or after the owner
	// closed it or cancelled its context.
	Err() error

	// Close ends the subscription. Safe to call more than once.
	Close() error
}

type subscription[T any] struct {
	ch  chan T
	mu  sync.RWMutex
	end bool
	err error
}

func newSubscription[T any](size int) *subscription[T] {
	return &subscription[T]{ch: make(chan T, size)}
}

func (s *subscription[T]) C() <-chan T { return s.ch }

func (s *subscription[T]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *subscription[T]) Close() error {
	s.finish(nil)
	return nil
}

func (s *subscription[T]) finish(reason error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.end {
		return
	}
	s.end, s.err = true, reason
	close(s.ch)
}

// offer reports false when the value could not be queued.
func (s *subscription[T]) offer(v T) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.end {
		return false
	}
	select {
	case s.ch <- v:
		return true
	default:
		return false
	}
}
