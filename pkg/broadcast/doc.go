// Package broadcast provides type-safe in-process fan-out.
//
// Hub queues each published value on every subscription without blocking.
// A subscription whose buffer is full is ended with ErrSlowSubscriber so the
// reader can resynchronise from storage. Keyed partitions hubs by key so each
// user gets an independent stream:
//
//	streams := broadcast.NewKeyed[string, Event](10000, 16)
//	sub := streams.Subscribe(ctx, userID)
//	defer sub.Close()
//
//	for ev := range sub.C() {
//		handle(ev)
//	}
//	if err := sub.Err(); err != nil {
//		// dropped or evicted
//	}
package broadcast
