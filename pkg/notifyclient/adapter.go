package notifyclient

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrymomot/notifykit/pkg/cache"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// Backend is the remote side the adapter syncs with.
// *notifications.Service and *HTTPBackend satisfy it.
type Backend interface {
	ListForUser(ctx context.Context, userID string) ([]notifications.Notification, error)
	MarkRead(ctx context.Context, id, userID string) (notifications.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

// Adapter keeps a per-user snapshot of notifications for a UI.
//
// Reads degrade to the last good snapshot when the backend cannot be
// reached. Marks are applied to the snapshot before the backend call and
// are never undone: read is terminal, so a fetch merges into the cached
// view instead of replacing read items with older unread copies.
type Adapter struct {
	backend     Backend
	snapshots   *cache.LRUCache[string, Snapshot]
	// ids marked locally that no fetch has reported read yet
	marks       *cache.LRUCache[string, localMarks]
	errs        *cache.LRUCache[string, error]
	logger      *slog.Logger
	now         func() time.Time
	callTimeout time.Duration
	maxRetries  uint64
	retryBase   time.Duration
}

type Option func(*adapterConfig)

type adapterConfig struct {
	logger       *slog.Logger
	now          func() time.Time
	callTimeout  time.Duration
	maxRetries   uint64
	retryBase    time.Duration
	cacheSize    int
	maxStaleness time.Duration
}

func WithLogger(l *slog.Logger) Option {
	return func(c *adapterConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *adapterConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCallTimeout bounds each backend attempt. A timed out attempt is a
// transport failure and is retried like one.
func WithCallTimeout(d time.Duration) Option {
	return func(c *adapterConfig) { c.callTimeout = d }
}

// WithRetry sets how many times a transport failure is retried and the
// initial exponential backoff. Zero retries disables retrying.
func WithRetry(maxRetries uint64, base time.Duration) Option {
	return func(c *adapterConfig) {
		c.maxRetries = maxRetries
		if base > 0 {
			c.retryBase = base
		}
	}
}

// WithCacheSize bounds how many users keep a snapshot.
func WithCacheSize(n int) Option {
	return func(c *adapterConfig) {
		if n > 0 {
			c.cacheSize = n
		}
	}
}

// WithMaxStaleness drops snapshots that have not been refreshed within d,
// so a long outage ends with an empty stale view instead of very old data.
func WithMaxStaleness(d time.Duration) Option {
	return func(c *adapterConfig) { c.maxStaleness = d }
}

func NewAdapter(backend Backend, opts ...Option) *Adapter {
	cfg := adapterConfig{
		logger:      slog.Default(),
		now:         time.Now,
		callTimeout: 10 * time.Second,
		maxRetries:  2,
		retryBase:   200 * time.Millisecond,
		cacheSize:   1024,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	cacheOpts := []cache.Option{cache.WithClock(cfg.now)}
	if cfg.maxStaleness > 0 {
		cacheOpts = append(cacheOpts, cache.WithTTL(cfg.maxStaleness))
	}

	return &Adapter{
		backend:     backend,
		snapshots:   cache.NewLRUCache[string, Snapshot](cfg.cacheSize, cacheOpts...),
		marks:       cache.NewLRUCache[string, localMarks](cfg.cacheSize),
		errs:        cache.NewLRUCache[string, error](cfg.cacheSize),
		logger:      cfg.logger.With(logger.Component("notifyclient")),
		now:         cfg.now,
		callTimeout: cfg.callTimeout,
		maxRetries:  cfg.maxRetries,
		retryBase:   cfg.retryBase,
	}
}

// call runs op with the per-attempt timeout, retrying transport failures.
// The returned error is classified.
func (a *Adapter) call(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(a.maxRetries, retry.NewExponential(a.retryBase))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if a.callTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, a.callTimeout)
		}
		defer cancel()

		err := op(callCtx)
		if err == nil || notifications.IsDomainError(err) {
			return err
		}
		if attempt <= int(a.maxRetries) {
			a.logger.DebugContext(ctx, "Retrying notification backend call",
				logger.RetryCount(attempt), logger.Error(err))
		}
		return retry.RetryableError(err)
	})
	return classify(err)
}

// FetchAll refreshes and returns the snapshot for userID.
//
// Transport failures do not produce an error: the previous snapshot, or an
// empty one, is returned with Stale and Err set. Domain errors are returned.
func (a *Adapter) FetchAll(ctx context.Context, userID string) (Snapshot, error) {
	var items []notifications.Notification
	err := a.call(ctx, func(ctx context.Context) error {
		var err error
		items, err = a.backend.ListForUser(ctx, userID)
		return err
	})

	switch {
	case err == nil:
		fresh := newSnapshot(items, a.now())
		snap := a.snapshots.Upsert(userID, func(prev Snapshot, ok bool) Snapshot {
			if ok {
				fresh = fresh.keepRead(prev)
			}
			pending, _ := a.marks.Get(userID)
			return fresh.withMarks(pending)
		})
		a.marks.Update(userID, func(m localMarks) localMarks { return m.without(items) })
		a.errs.Remove(userID)
		return snap.clone(), nil
	case notifications.IsDomainError(err):
		return Snapshot{}, err
	}

	a.logger.WarnContext(ctx, "Serving stale notifications", logger.UserID(userID), logger.Error(err))

	a.errs.Put(userID, err)
	snap := a.snapshots.Upsert(userID, func(prev Snapshot, ok bool) Snapshot {
		if !ok {
			prev = Snapshot{Items: []notifications.Notification{}}
		}
		prev.Stale, prev.Err = true, err
		return prev
	})
	return snap.clone(), nil
}

// Snapshot returns the cached snapshot without contacting the backend.
func (a *Adapter) Snapshot(userID string) (Snapshot, bool) {
	snap, ok := a.snapshots.Get(userID)
	if !ok {
		return Snapshot{}, false
	}
	return snap.clone(), true
}

// LastError returns the error of the latest failed call for userID, also
// when no snapshot is cached. A successful fetch clears it.
func (a *Adapter) LastError(userID string) error {
	err, _ := a.errs.Get(userID)
	return err
}

// MarkOneOptimistic marks id read in the cached snapshot, then on the
// backend. A failed backend call leaves the local flip in place, records
// the error for LastError and returns it. The flip also survives fetches
// that were in flight while it was applied.
func (a *Adapter) MarkOneOptimistic(ctx context.Context, userID, id string) error {
	at := a.now()
	a.marks.Upsert(userID, func(m localMarks, _ bool) localMarks { return m.with(at, id) })
	a.snapshots.Update(userID, func(s Snapshot) Snapshot { return s.withRead(id, at) })

	var confirmed notifications.Notification
	err := a.call(ctx, func(ctx context.Context) error {
		var err error
		confirmed, err = a.backend.MarkRead(ctx, id, userID)
		return err
	})
	if err != nil {
		a.logger.WarnContext(ctx, "Optimistic mark read was not confirmed",
			logger.UserID(userID), logger.NotificationID(id), logger.Error(err))
		if notifications.IsDomainError(err) {
			// the backend will never report it read; the snapshot keeps the flip
			a.marks.Update(userID, func(m localMarks) localMarks { return m.drop(id) })
		}
		a.recordError(userID, err)
		return err
	}

	a.snapshots.Update(userID, func(s Snapshot) Snapshot { return s.withConfirmed(confirmed) })
	return nil
}

// MarkAllOptimistic marks every cached item read, then asks the backend to
// do the same. Returns the backend's transitioned count.
func (a *Adapter) MarkAllOptimistic(ctx context.Context, userID string) (int, error) {
	at := a.now()
	a.snapshots.Update(userID, func(s Snapshot) Snapshot {
		a.marks.Upsert(userID, func(m localMarks, _ bool) localMarks { return m.with(at, s.unreadIDs()...) })
		return s.withAllRead(at)
	})

	var updated int
	err := a.call(ctx, func(ctx context.Context) error {
		var err error
		updated, err = a.backend.MarkAllRead(ctx, userID)
		return err
	})
	if err != nil {
		a.logger.WarnContext(ctx, "Optimistic mark all read was not confirmed",
			logger.UserID(userID), logger.Error(err))
		a.recordError(userID, err)
		return 0, err
	}
	return updated, nil
}

func (a *Adapter) recordError(userID string, err error) {
	a.errs.Put(userID, err)
	a.snapshots.Update(userID, func(s Snapshot) Snapshot {
		s.Err = err
		return s
	})
}

// Forget drops the cached snapshot of userID, for example on sign out.
func (a *Adapter) Forget(userID string) {
	a.snapshots.Remove(userID)
	a.marks.Remove(userID)
	a.errs.Remove(userID)
}
