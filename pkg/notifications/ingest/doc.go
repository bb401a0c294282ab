// Package ingest creates notifications from events published to Kafka.
//
// Producers write JSON messages of the form
//
//	{"user_id": "u1", "type": "booking", "message": "Booking confirmed"}
//
// to the configured topic. The consumer reads them with a consumer group,
// creates one notification per event through the notification service and
// commits the offset. Malformed events are logged and skipped so a single bad
// message never blocks the partition.
//
// Usage:
//
//	cfg := config.MustLoad[ingest.Config]()
//	consumer, err := ingest.NewFromConfig(cfg, svc, ingest.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	go consumer.Run(ctx)
package ingest
