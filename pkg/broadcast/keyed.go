package broadcast

import (
	"context"
	"sync"

	"github.com/dmitrymomot/notifykit/pkg/cache"
)

// Keyed holds one Hub per key, e.g. per user.
// At most limit hubs are kept; the least recently used one is closed when
// the limit is exceeded and its subscriptions end with ErrClosed.
type Keyed[K comparable, T any] struct {
	mu   sync.Mutex
	hubs *cache.LRUCache[K, *Hub[T]]
	size int
}

// NewKeyed creates a keyed broadcaster with per-subscription buffers of size.
func NewKeyed[K comparable, T any](limit, size int) *Keyed[K, T] {
	k := &Keyed[K, T]{
		hubs: cache.NewLRUCache[K, *Hub[T]](limit),
		size: size,
	}
	k.hubs.SetEvictCallback(func(_ K, h *Hub[T]) { _ = h.Close() })
	return k
}

// Subscribe subscribes to values published under key.
func (k *Keyed[K, T]) Subscribe(ctx context.Context, key K) Subscription[T] {
	k.mu.Lock()
	h, ok := k.hubs.Get(key)
	if !ok {
		h = NewHub[T](k.size)
		k.hubs.Put(key, h)
	}
	k.mu.Unlock()
	return h.Subscribe(ctx)
}

// Publish queues v for the subscribers of key and returns how many accepted it.
// Keys without a hub are skipped without allocating one.
func (k *Keyed[K, T]) Publish(key K, v T) int {
	k.mu.Lock()
	h, ok := k.hubs.Get(key)
	k.mu.Unlock()
	if !ok {
		return 0
	}
	return h.Publish(v)
}

// Len returns the number of keys with a hub.
func (k *Keyed[K, T]) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.hubs.Len()
}

// Close closes every hub.
func (k *Keyed[K, T]) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.hubs.Clear()
	return nil
}
