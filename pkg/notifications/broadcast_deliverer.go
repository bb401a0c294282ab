package notifications

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/notifykit/pkg/broadcast"
	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// BroadcastDeliverer fans new notifications out to every open stream of the owner,
// e.g. several browser tabs of the same user.
type BroadcastDeliverer struct {
	streams         *broadcast.Keyed[string, Notification]
	bufferSize      int
	maxBroadcasters int
	logger          *slog.Logger
}

// BroadcastDelivererOption configures a BroadcastDeliverer.
type BroadcastDelivererOption func(*BroadcastDeliverer)

// WithBroadcastLogger sets the logger for the BroadcastDeliverer.
func WithBroadcastLogger(l *slog.Logger) BroadcastDelivererOption {
	return func(b *BroadcastDeliverer) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMaxBroadcasters caps the number of users with a live stream.
// The least recently used user's streams are closed when the cap is reached.
// Default is 10,000.
func WithMaxBroadcasters(limit int) BroadcastDelivererOption {
	return func(b *BroadcastDeliverer) {
		if limit > 0 {
			b.maxBroadcasters = limit
		}
	}
}

// NewBroadcastDeliverer creates a deliverer with per-subscriber buffers of bufferSize.
func NewBroadcastDeliverer(bufferSize int, opts ...BroadcastDelivererOption) *BroadcastDeliverer {
	b := &BroadcastDeliverer{
		bufferSize:      bufferSize,
		maxBroadcasters: 10000,
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		opt(b)
	}

	b.streams = broadcast.NewKeyed[string, Notification](b.maxBroadcasters, b.bufferSize)

	return b
}

// Deliver queues notif on every open stream of its owner. A user with no
// open stream is a no-op.
func (d *BroadcastDeliverer) Deliver(ctx context.Context, notif Notification) error {
	n := d.streams.Publish(notif.UserID, notif)
	d.logger.LogAttrs(ctx, slog.LevelDebug, "Notification pushed to streams",
		logger.UserID(notif.UserID),
		slog.String("notification_id", notif.ID),
		slog.Int("streams", n),
	)
	return nil
}

// Subscribe opens a stream of the user's new notifications.
// The subscription ends when ctx is cancelled.
func (d *BroadcastDeliverer) Subscribe(ctx context.Context, userID string) broadcast.Subscription[Notification] {
	return d.streams.Subscribe(ctx, userID)
}

// Close closes all user streams.
func (d *BroadcastDeliverer) Close() error {
	return d.streams.Close()
}
