package cache

import (
	"container/list"
	"sync"
	"time"
)

type lruEntry[K comparable, V any] struct {
	key      K
	value    V
	storedAt time.Time
}

// LRUCache is a bounded, thread-safe cache keyed by K.
// Entries are evicted least-recently-used first, and optionally expire after a TTL.
type LRUCache[K comparable, V any] struct {
	capacity int
	ttl      time.Duration
	now      func() time.Time
	items    map[K]*list.Element
	eviction *list.List
	onEvict  func(key K, value V)
	mu       sync.Mutex
}

// Option configures an LRUCache.
type Option func(*options)

type options struct {
	ttl time.Duration
	now func() time.Time
}

// WithTTL expires entries d after they were last written.
// Zero disables expiry.
func WithTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.ttl = d
		}
	}
}

// WithClock injects the time source used for TTL checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// NewLRUCache creates a cache holding at most capacity entries.
// Panics if capacity is not positive.
func NewLRUCache[K comparable, V any](capacity int, opts ...Option) *LRUCache[K, V] {
	if capacity <= 0 {
		panic("LRU cache capacity must be positive")
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &LRUCache[K, V]{
		capacity: capacity,
		ttl:      o.ttl,
		now:      o.now,
		items:    make(map[K]*list.Element),
		eviction: list.New(),
	}
}

// SetEvictCallback registers fn to run for every entry leaving the cache
// through eviction, expiry, Remove or Clear. fn runs with the cache lock held.
func (c *LRUCache[K, V]) SetEvictCallback(fn func(key K, value V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// Get returns the value for key and marks it as recently used.
// Expired entries are dropped and reported as missing.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}

	entry := elem.Value.(*lruEntry[K, V])
	if c.expired(entry) {
		c.removeElement(elem)
		return zero, false
	}

	c.eviction.MoveToFront(elem)
	return entry.value, true
}

// Put stores value under key, evicting the least recently used entry when full.
// Returns the previous value and whether one existed.
func (c *LRUCache[K, V]) Put(key K, value V) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if elem, ok := c.items[key]; ok {
		c.eviction.MoveToFront(elem)
		entry := elem.Value.(*lruEntry[K, V])
		old := entry.value
		entry.value = value
		entry.storedAt = now
		return old, true
	}

	elem := c.eviction.PushFront(&lruEntry[K, V]{key: key, value: value, storedAt: now})
	c.items[key] = elem

	if c.eviction.Len() > c.capacity {
		if oldest := c.eviction.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}

	var zero V
	return zero, false
}

// Update applies fn to the cached value of key in place.
// Returns false when key is missing or expired; fn is not called then.
func (c *LRUCache[K, V]) Update(key K, fn func(V) V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return false
	}
	entry := elem.Value.(*lruEntry[K, V])
	if c.expired(entry) {
		c.removeElement(elem)
		return false
	}

	entry.value = fn(entry.value)
	c.eviction.MoveToFront(elem)
	return true
}

// Upsert stores fn(old, ok) under key as one atomic step and returns the
// stored value. ok is false when key is missing or expired. Inserting may
// evict the least recently used entry.
func (c *LRUCache[K, V]) Upsert(key K, fn func(old V, ok bool) V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*lruEntry[K, V])
		if !c.expired(entry) {
			entry.value = fn(entry.value, true)
			entry.storedAt = now
			c.eviction.MoveToFront(elem)
			return entry.value
		}
		c.removeElement(elem)
	}

	var zero V
	value := fn(zero, false)
	c.items[key] = c.eviction.PushFront(&lruEntry[K, V]{key: key, value: value, storedAt: now})
	if c.eviction.Len() > c.capacity {
		if oldest := c.eviction.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
	return value
}

// Remove deletes key and returns the removed value.
func (c *LRUCache[K, V]) Remove(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*lruEntry[K, V])
		c.removeElement(elem)
		return entry.value, true
	}

	var zero V
	return zero, false
}

// Len returns the number of entries, including expired ones not yet dropped.
func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eviction.Len()
}

// Clear removes every entry, calling the evict callback for each.
func (c *LRUCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.onEvict != nil {
		for _, elem := range c.items {
			entry := elem.Value.(*lruEntry[K, V])
			c.onEvict(entry.key, entry.value)
		}
	}

	c.items = make(map[K]*list.Element)
	c.eviction.Init()
}

// Must be called with lock held.
func (c *LRUCache[K, V]) expired(entry *lruEntry[K, V]) bool {
	return c.ttl > 0 && c.now().Sub(entry.storedAt) >= c.ttl
}

// Must be called with lock held.
func (c *LRUCache[K, V]) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	entry := elem.Value.(*lruEntry[K, V])
	delete(c.items, entry.key)

	if c.onEvict != nil {
		c.onEvict(entry.key, entry.value)
	}
}
