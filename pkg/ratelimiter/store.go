package ratelimiter

import (
	"context"
	"time"
)

// Store keeps bucket state per key.
type Store interface {
	// ConsumeTokens refills the bucket for now and takes tokens when enough
	// are available. A denied request leaves the bucket untouched and reports
	// the shortfall as a negative remaining count. Zero tokens only refills.
	ConsumeTokens(ctx context.Context, key string, tokens int, cfg Config, now time.Time) (remaining int, resetAt time.Time, err error)

	// Reset clears the state for key.
	Reset(ctx context.Context, key string) error
}

// refill applies every whole interval elapsed since last and returns the new
// token count and refill mark.
func refill(tokens int, last, now time.Time, cfg Config) (int, time.Time) {
	if now.Before(last) {
		return tokens, last
	}
	maxIntervals := int64(cfg.Capacity/cfg.RefillRate + 1)
	intervals := min(int64(now.Sub(last)/cfg.RefillInterval), maxIntervals)
	if intervals <= 0 {
		return tokens, last
	}
	tokens = min(tokens+int(intervals)*cfg.RefillRate, cfg.Capacity)
	if tokens == cfg.Capacity {
		return tokens, now
	}
	return tokens, last.Add(time.Duration(intervals) * cfg.RefillInterval)
}
