// Package httpserver runs the notifyd HTTP API with graceful shutdown.
//
// Run blocks until its context is cancelled or Shutdown is called, then
// drains requests within the configured shutdown timeout. Request contexts
// derive from the Run context so server-sent event streams end when the
// process stops. HealthCheckHandler backs the liveness and readiness endpoints.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
package httpserver
