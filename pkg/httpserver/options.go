package httpserver

import (
	"log/slog"
	"time"
)

// Option configures the HTTP server.
type Option func(*config)

// WithAddr sets the listen address. Use "127.0.0.1:0" for an ephemeral port.
// An empty addr keeps ":8080".
func WithAddr(addr string) Option {
	return func(c *config) {
		if addr != "" {
			c.addr = addr
		}
	}
}

// WithTimeouts sets the read, write and idle timeouts of the underlying
// http.Server. Zero leaves the matching limit off; SSE routes need an
// unbounded write timeout.
func WithTimeouts(read, write, idle time.Duration) Option {
	return func(c *config) {
		c.readTimeout = max(read, 0)
		c.writeTimeout = max(write, 0)
		c.idleTimeout = max(idle, 0)
	}
}

// WithShutdownTimeout bounds how long Shutdown waits for in-flight requests.
// Non-positive values are ignored.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.shutdownTimeout = d
		}
	}
}

// WithLogger sets the server logger. Nil keeps the discarding default.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStartHook registers a callback that receives the bound address.
func WithStartHook(h func(addr string)) Option {
	return func(c *config) {
		if h != nil {
			c.startHooks = append(c.startHooks, h)
		}
	}
}

// WithStopHook registers a callback that runs after the drain completes.
func WithStopHook(h func()) Option {
	return func(c *config) {
		if h != nil {
			c.stopHooks = append(c.stopHooks, h)
		}
	}
}
