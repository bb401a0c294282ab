package ratelimiter

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// KeyFunc extracts the rate limit key from a request.
// An empty key lets the request through unchecked.
type KeyFunc func(r *http.Request) string

// DenyFunc writes the response for a rejected request.
type DenyFunc func(w http.ResponseWriter, r *http.Request, res *Result)

type middlewareConfig struct {
	deny   DenyFunc
	logger *slog.Logger
	now    func() time.Time
}

type MiddlewareOption func(*middlewareConfig)

// WithDenyHandler replaces the plain-text 429 response.
func WithDenyHandler(fn DenyFunc) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.deny = fn
		}
	}
}

func WithMiddlewareLogger(l *slog.Logger) MiddlewareOption {
	return func(c *middlewareConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMiddlewareClock(now func() time.Time) MiddlewareOption {
	return func(c *middlewareConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// Middleware limits requests per key and sets X-RateLimit-* headers.
// Limiter failures are logged and the request is let through.
func Middleware(l Limiter, key KeyFunc, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{
		deny: func(w http.ResponseWriter, _ *http.Request, _ *Result) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, err := l.Allow(r.Context(), k)
			if err != nil {
				cfg.logger.WarnContext(r.Context(), "Rate limiter unavailable, allowing request", logger.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(max(0, res.Remaining)))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed() {
				wait := math.Ceil(res.RetryAfter(cfg.now()).Seconds())
				h.Set("Retry-After", strconv.Itoa(max(1, int(wait))))
				cfg.deny(w, r, res)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
