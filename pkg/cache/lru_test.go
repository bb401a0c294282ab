package cache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notifykit/pkg/cache"
)

func TestLRUCache_PutGet(t *testing.T) {
	c := cache.NewLRUCache[string, int](3)

	_, existed := c.Put("a", 1)
	assert.False(t, existed)

	old, existed := c.Put("a", 2)
	assert.True(t, existed)
	assert.Equal(t, 1, old)

	val, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, val)

	_, ok = c.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestLRUCache_Eviction(t *testing.T) {
	var evicted []string
	c := cache.NewLRUCache[string, int](2)
	c.SetEvictCallback(func(key string, _ int) {
		evicted = append(evicted, key)
	})

	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a") // b becomes least recently used
	c.Put("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []string{"b"}, evicted)
}

func TestLRUCache_TTL(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	c := cache.NewLRUCache[string, int](10, cache.WithTTL(time.Minute), cache.WithClock(clock))
	c.Put("a", 1)

	now = now.Add(59 * time.Second)
	_, ok := c.Get("a")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok, "entry expires exactly at ttl")
	assert.Equal(t, 0, c.Len())
}

func TestLRUCache_Update(t *testing.T) {
	c := cache.NewLRUCache[string, []int](2)

	assert.False(t, c.Update("a", func(v []int) []int { return append(v, 1) }))

	c.Put("a", []int{1})
	assert.True(t, c.Update("a", func(v []int) []int { return append(v, 2) }))

	val, _ := c.Get("a")
	assert.Equal(t, []int{1, 2}, val)
}

func TestLRUCache_Upsert(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := cache.NewLRUCache[string, int](2, cache.WithTTL(time.Minute), cache.WithClock(func() time.Time { return now }))
	incr := func(v int, ok bool) int {
		if !ok {
			return 1
		}
		return v + 1
	}

	assert.Equal(t, 1, c.Upsert("a", incr))
	assert.Equal(t, 2, c.Upsert("a", incr))

	now = now.Add(time.Minute)
	assert.Equal(t, 1, c.Upsert("a", incr), "expired entries start over")

	c.Upsert("b", incr)
	c.Upsert("c", incr)
	_, ok := c.Get("a")
	assert.False(t, ok, "insert evicts the least recently used key")
	assert.Equal(t, 2, c.Len())
}

func TestLRUCache_UpsertConcurrent(t *testing.T) {
	c := cache.NewLRUCache[string, int](4)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				c.Upsert("k", func(v int, _ bool) int { return v + 1 })
			}
		}()
	}
	wg.Wait()

	val, _ := c.Get("k")
	assert.Equal(t, 800, val)
}

func TestLRUCache_RemoveAndClear(t *testing.T) {
	closed := 0
	c := cache.NewLRUCache[string, int](5)
	c.SetEvictCallback(func(string, int) { closed++ })

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	val, ok := c.Remove("a")
	assert.True(t, ok)
	assert.Equal(t, 1, val)

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 3, closed)
}

func TestLRUCache_InvalidCapacity(t *testing.T) {
	assert.Panics(t, func() { cache.NewLRUCache[string, int](0) })
}

func TestLRUCache_Concurrent(t *testing.T) {
	c := cache.NewLRUCache[int, int](50)

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				c.Put(g*1000+i, i)
				c.Get(g*1000 + i - 1)
				c.Update(g*1000+i, func(v int) int { return v + 1 })
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 50)
}
