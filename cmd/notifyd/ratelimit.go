package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/notifykit/pkg/config"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/ratelimiter"
	"github.com/dmitrymomot/notifykit/pkg/redis"
)

// openRateLimiter returns nil when rate limiting is switched off.
// The returned close func is never nil.
func openRateLimiter(ctx context.Context, kind string, log *slog.Logger) (ratelimiter.Limiter, func(), error) {
	if kind == RateLimitOff {
		log.Info("Rate limiting disabled")
		return nil, func() {}, nil
	}

	var cfg ratelimiter.Config
	if err := config.Load(&cfg); err != nil {
		return nil, nil, err
	}

	var (
		store   ratelimiter.Store
		closeFn func()
	)
	switch kind {
	case BackendMemory:
		ms := ratelimiter.NewMemoryStore()
		store, closeFn = ms, ms.Close
	case BackendRedis:
		var rcfg redis.Config
		if err := config.Load(&rcfg); err != nil {
			return nil, nil, err
		}
		client, err := redis.Connect(ctx, rcfg)
		if err != nil {
			return nil, nil, err
		}
		store = ratelimiter.NewRedisStore(client)
		closeFn = func() {
			if err := client.Close(); err != nil {
				log.Error("Failed to close rate limit redis client", logger.Error(err))
			}
		}
	default:
		return nil, nil, fmt.Errorf("unknown rate limit store %q", kind)
	}

	limiter, err := ratelimiter.NewBucket(store, cfg)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return limiter, closeFn, nil
}
