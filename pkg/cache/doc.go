// Package cache provides a generic, thread-safe LRU cache with optional
// time-based expiry.
//
// The cache is bounded by entry count; when full, the least recently used
// entry is evicted. With WithTTL, entries also expire a fixed duration after
// they were last written. The time source is injectable with WithClock so
// expiry is deterministic in tests.
//
//	snapshots := cache.NewLRUCache[string, Snapshot](1000,
//		cache.WithTTL(10*time.Minute),
//	)
//	snapshots.Put(userID, snap)
//	snap, ok := snapshots.Get(userID)
//
// An eviction callback can release resources held by values:
//
//	streams := cache.NewLRUCache[string, io.Closer](100)
//	streams.SetEvictCallback(func(_ string, c io.Closer) { _ = c.Close() })
package cache
