// Package redis opens go-redis clients from REDIS_* environment variables,
// retrying the first PING with exponential backoff. The redis notification
// store and the shared rate limit store build on it.
package redis
