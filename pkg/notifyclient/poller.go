package notifyclient

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// UserSource lists the users a Poller refreshes on each tick.
type UserSource func(ctx context.Context) ([]string, error)

// SnapshotHandler receives every snapshot a Poller fetches.
type SnapshotHandler func(userID string, snap Snapshot)

// Poller refreshes adapter snapshots on a fixed interval.
type Poller struct {
	adapter     *Adapter
	users       UserSource
	interval    time.Duration
	concurrency int
	onSnapshot  SnapshotHandler
	logger      *slog.Logger
}

type PollerOption func(*Poller)

// WithConcurrency caps the number of users fetched at once.
func WithConcurrency(n int) PollerOption {
	return func(p *Poller) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func WithSnapshotHandler(fn SnapshotHandler) PollerOption {
	return func(p *Poller) { p.onSnapshot = fn }
}

func WithPollerLogger(l *slog.Logger) PollerOption {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewPoller(adapter *Adapter, users UserSource, interval time.Duration, opts ...PollerOption) *Poller {
	p := &Poller{
		adapter:     adapter,
		users:       users,
		interval:    interval,
		concurrency: 4,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls immediately and then every interval until ctx is done.
// It returns nil on cancellation.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.WarnContext(ctx, "Notification poll failed", logger.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// PollOnce fetches every user once. Stale results still reach the handler;
// a domain error for one user is logged and does not stop the others.
func (p *Poller) PollOnce(ctx context.Context) error {
	userIDs, err := p.users(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, userID := range userIDs {
		g.Go(func() error {
			snap, err := p.adapter.FetchAll(gctx, userID)
			if err != nil {
				p.logger.WarnContext(gctx, "Skipping user in poll", logger.UserID(userID), logger.Error(err))
				return nil
			}
			if p.onSnapshot != nil {
				p.onSnapshot(userID, snap)
			}
			return nil
		})
	}
	return g.Wait()
}
