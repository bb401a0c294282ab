package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// EventNotificationCreated is the event name of every payload the Deliverer posts.
const EventNotificationCreated = "notification.created"

// Event is the JSON body posted for each new notification.
type Event struct {
	Event      string                     `json:"event"`
	OccurredAt time.Time                  `json:"occurred_at"`
	Data       notifications.Notification `json:"data"`
}

// Deliverer forwards created notifications to one webhook endpoint.
// Deliver only enqueues; Run drains the queue with a fixed set of workers.
type Deliverer struct {
	sender  *Sender
	target  string
	queue   chan notifications.Notification
	workers int
	logger  *slog.Logger
}

var _ notifications.Deliverer = (*Deliverer)(nil)

type DelivererOption func(*Deliverer)

func WithQueueSize(n int) DelivererOption {
	return func(d *Deliverer) {
		if n > 0 {
			d.queue = make(chan notifications.Notification, n)
		}
	}
}

func WithWorkers(n int) DelivererOption {
	return func(d *Deliverer) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithDelivererLogger(l *slog.Logger) DelivererOption {
	return func(d *Deliverer) {
		if l != nil {
			d.logger = l
		}
	}
}

func NewDeliverer(sender *Sender, target string, opts ...DelivererOption) (*Deliverer, error) {
	if err := validateURL(target); err != nil {
		return nil, err
	}
	d := &Deliverer{
		sender:  sender,
		target:  target,
		queue:   make(chan notifications.Notification, 256),
		workers: 2,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(logger.Component("webhook"))
	return d, nil
}

// Deliver enqueues notif without blocking. It returns ErrQueueFull when the
// workers cannot keep up.
func (d *Deliverer) Deliver(_ context.Context, notif notifications.Notification) error {
	select {
	case d.queue <- notif:
		return nil
	default:
		return fmt.Errorf("%w: dropping notification %s", ErrQueueFull, notif.ID)
	}
}

// Run sends queued notifications until ctx is done. Queued items left at
// cancellation are dropped.
func (d *Deliverer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for range d.workers {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case n := <-d.queue:
					d.send(ctx, n)
				}
			}
		})
	}
	return g.Wait()
}

func (d *Deliverer) send(ctx context.Context, n notifications.Notification) {
	body, err := json.Marshal(Event{
		Event:      EventNotificationCreated,
		OccurredAt: n.CreatedAt,
		Data:       n,
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to encode webhook event", logger.NotificationID(n.ID), logger.Error(err))
		return
	}

	start := time.Now()
	if err := d.sender.Send(ctx, d.target, body); err != nil {
		if ctx.Err() != nil {
			return
		}
		d.logger.WarnContext(ctx, "Webhook delivery failed",
			logger.NotificationID(n.ID),
			logger.UserID(n.UserID),
			logger.Error(err),
		)
		return
	}
	d.logger.DebugContext(ctx, "Webhook delivered",
		logger.NotificationID(n.ID),
		logger.Duration(time.Since(start)),
	)
}
