// Package notifyclient is the client side of notifykit.
//
// An Adapter holds the latest Snapshot per user and talks to a Backend,
// either the in-process notifications.Service or an HTTPBackend pointed at
// notifyd. Transport failures are retried with exponential backoff and then
// absorbed: FetchAll keeps returning the last good snapshot marked Stale.
// Marks are optimistic and never rolled back locally.
//
//	adapter := notifyclient.NewAdapter(
//		notifyclient.NewHTTPBackend(baseURL, tokens),
//		notifyclient.WithCallTimeout(3*time.Second),
//	)
//	snap, err := adapter.FetchAll(ctx, userID)
//	if err != nil {
//		return err // domain error, e.g. invalid user
//	}
//	if snap.Stale {
//		showOfflineBanner(snap.Err)
//	}
//
// Poller refreshes many users on an interval with bounded concurrency.
package notifyclient
