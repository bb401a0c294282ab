// Package webhook forwards newly created notifications to an HTTP endpoint.
//
// Each notification is posted as JSON:
//
//	{"event":"notification.created","occurred_at":"...","data":{...}}
//
// Requests carry an X-Webhook-ID that stays the same across retries. With a
// secret configured they are also signed: X-Webhook-Signature holds the hex
// HMAC-SHA256 of "<X-Webhook-Timestamp>.<body>". Receivers check it with Verify.
//
// The Deliverer satisfies notifications.Deliverer. Deliver never blocks the
// caller; a pool started with Run performs the HTTP calls, retrying transient
// failures with exponential backoff behind a circuit breaker.
//
//	d, err := webhook.NewFromConfig(cfg, webhook.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	go d.Run(ctx)
//	svc := notifications.NewService(store, notifications.WithDeliverer(d))
package webhook
