// Package ratelimiter provides token bucket rate limiting with in-memory and
// Redis storage and an HTTP middleware.
//
// A bucket holds up to Capacity tokens and gains RefillRate tokens every
// RefillInterval. Each request takes one token; a request that does not fit
// is denied without draining the bucket further.
//
//	store := ratelimiter.NewMemoryStore()
//	defer store.Close()
//
//	limiter, err := ratelimiter.NewBucket(store, ratelimiter.Config{
//		Capacity:       60,
//		RefillRate:     1,
//		RefillInterval: time.Second,
//	})
//	if err != nil {
//		return err
//	}
//
//	r.Use(ratelimiter.Middleware(limiter, func(r *http.Request) string {
//		return jwt.SubjectFromContext(r.Context())
//	}))
//
// Use NewRedisStore to share buckets between several instances.
package ratelimiter
