// Package logger builds *slog.Logger instances for notifykit services and
// provides attribute constructors so every component logs the same keys.
//
// New takes functional options for format, level, output, static attributes
// and ContextExtractor callbacks. Extractors run on every record, which lets
// request scoped values such as a request id reach the log line without
// threading a logger through each call.
//
// # Usage
//
//	log := logger.New(
//		logger.WithEnvironment(logger.EnvProduction, "notifyd"),
//		logger.WithContextValue("request_id", requestIDKey{}),
//	)
//	log.InfoContext(ctx, "notification created",
//		logger.NotificationID(n.ID),
//		logger.UserID(n.UserID),
//	)
//
// Attribute helpers return an empty slog.Attr for empty input, and slog
// omits empty attributes from output.
package logger
