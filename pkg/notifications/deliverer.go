package notifications

import (
	"context"
	"errors"
)

// Deliverer pushes freshly created notifications to connected clients.
// Delivery is best effort: the stored record stays authoritative.
type Deliverer interface {
	Deliver(ctx context.Context, notif Notification) error
}

// NoOpDeliverer is a deliverer that does nothing.
// Used when real-time delivery is not needed.
type NoOpDeliverer struct{}

// Deliver does nothing and returns nil.
func (n *NoOpDeliverer) Deliver(ctx context.Context, notif Notification) error {
	return nil
}

// Fanout delivers to each deliverer in order and joins their errors.
type Fanout []Deliverer

func (f Fanout) Deliver(ctx context.Context, notif Notification) error {
	var errs []error
	for _, d := range f {
		if err := d.Deliver(ctx, notif); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
