package notifications

import (
	"context"
	"time"
)

// Storage handles notification persistence and retrieval.
// Implementations must make each read-state update atomic per record.
type Storage interface {
	// Put inserts a new notification. Returns ErrDuplicateID if the id exists.
	Put(ctx context.Context, notif Notification) error

	// Get retrieves a notification by id. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (Notification, error)

	// ListByUser returns all notifications owned by userID in no particular order.
	ListByUser(ctx context.Context, userID string) ([]Notification, error)

	// UpdateReadState marks a notification as read and reports whether this
	// call made the transition. Already-read notifications are returned
	// unchanged with false.
	UpdateReadState(ctx context.Context, id string, readAt time.Time) (Notification, bool, error)

	// UpdateAllReadForUser marks every unread notification of userID as read
	// and returns the number of records that actually changed.
	UpdateAllReadForUser(ctx context.Context, userID string, readAt time.Time) (int, error)
}
