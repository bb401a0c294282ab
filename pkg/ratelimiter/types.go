package ratelimiter

import (
	"fmt"
	"time"
)

// Result is the outcome of a rate limit check.
type Result struct {
	Limit     int       // bucket capacity
	Remaining int       // tokens left; negative when the request was denied
	ResetAt   time.Time // next refill
}

// Allowed reports whether the request fit in the bucket.
func (r *Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter returns how long to wait before retrying, or 0 when allowed.
func (r *Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed() {
		return 0
	}
	return max(r.ResetAt.Sub(now), 0)
}

// Config defines the token bucket. Tokens refill in whole intervals.
type Config struct {
	Capacity       int           `env:"RATE_LIMIT_CAPACITY" envDefault:"120"`
	RefillRate     int           `env:"RATE_LIMIT_REFILL_RATE" envDefault:"2"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1s"`
}

func (c Config) validate() error {
	switch {
	case c.Capacity <= 0:
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	case c.RefillRate <= 0:
		return fmt.Errorf("%w: refill rate must be positive, got %d", ErrInvalidConfig, c.RefillRate)
	case c.RefillInterval <= 0:
		return fmt.Errorf("%w: refill interval must be positive, got %v", ErrInvalidConfig, c.RefillInterval)
	}
	return nil
}

// fullRefill is how long an empty bucket takes to fill up again.
func (c Config) fullRefill() time.Duration {
	intervals := (c.Capacity + c.RefillRate - 1) / c.RefillRate
	return time.Duration(intervals) * c.RefillInterval
}
