// Package notifications is the authoritative per-user notification store and
// read-state machine.
//
// # Architecture
//
//   - Storage: persistence keyed by id with a per-user index
//   - Service: ownership checks and the Unread -> Read transition
//   - Projection: pure filtering, ordering and display helpers over a snapshot
//   - Deliverer: best-effort push of newly created notifications
//
// Storage backends live in sub-packages (sqlitestore, pgstore, redisstore,
// mongostore); MemoryStorage is included for development and tests. Every
// backend is checked by the storetest conformance suite.
//
// # Basic Usage
//
//	storage := notifications.NewMemoryStorage()
//	deliverer := notifications.NewBroadcastDeliverer(100)
//	svc := notifications.NewService(storage, notifications.WithDeliverer(deliverer))
//
//	notif, err := svc.Create(ctx, "user123", notifications.TypeBooking, "Booking confirmed")
//
//	list, err := svc.ListForUser(ctx, "user123") // most recent first
//	unread := slices.Collect(notifications.Filter(list, notifications.UnreadOnly()))
//
//	_, err = svc.MarkRead(ctx, notif.ID, "user123") // ErrForbidden for other users
//	n, err := svc.MarkAllRead(ctx, "user123")       // number transitioned
//
// # Read State
//
// A notification starts unread and can only become read. Marking an already
// read notification is a no-op, so retries and concurrent clients converge on
// the same state without locking.
//
// # Notification Types
//
// Types form a closed set: info, success, warning, error, system, booking,
// payment, reminder, workshop and message. ParseType rejects anything else
// with ErrInvalidType.
package notifications
