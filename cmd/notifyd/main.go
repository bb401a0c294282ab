// Command notifyd serves the notification API.
//
// Configuration comes from the environment and an optional .env file.
// The main switches:
//
//	STORE_BACKEND     memory | sqlite | postgres | redis | mongo
//	JWT_SECRET        HS256 key for access tokens (required)
//	INGRESS_JWT_SECRET  HS256 key for POST /internal/notifications; unset disables it
//	RATE_LIMIT_STORE  memory | redis | off
//	WEBHOOK_URL       forward new notifications to this endpoint
//	KAFKA_BROKERS     consume create events from Kafka
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/notifykit/pkg/clientip"
	"github.com/dmitrymomot/notifykit/pkg/config"
	"github.com/dmitrymomot/notifykit/pkg/httpserver"
	"github.com/dmitrymomot/notifykit/pkg/jwt"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/notifications/httpapi"
	"github.com/dmitrymomot/notifykit/pkg/notifications/ingest"
	"github.com/dmitrymomot/notifykit/pkg/requestid"
	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("notifyd stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	log := logger.New(
		logger.WithEnvironment(cfg.Env, cfg.ServiceName),
		logger.WithContextExtractors(requestid.LoggerExtractor(), clientip.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	st, err := openStore(ctx, cfg.StoreBackend, cfg.RedisPrefix, log)
	if err != nil {
		return err
	}
	defer st.close()

	tokens, err := jwt.New([]byte(cfg.JWTSecret), jwt.WithIssuer(cfg.JWTIssuer))
	if err != nil {
		return err
	}
	ingress, err := cfg.ingressTokens()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deliverer := notifications.NewBroadcastDeliverer(cfg.SSEBuffer,
		notifications.WithBroadcastLogger(log),
		notifications.WithMaxBroadcasters(cfg.MaxStreamKeys),
	)
	defer deliverer.Close()

	var hookCfg webhook.Config
	if err := config.Load(&hookCfg); err != nil {
		return err
	}
	deliverers := notifications.Fanout{deliverer}
	var hooks *webhook.Deliverer
	if hookCfg.Enabled() {
		hooks, err = webhook.NewFromConfig(hookCfg, webhook.WithLogger(log))
		if err != nil {
			return err
		}
		deliverers = append(deliverers, hooks)
	}

	svc := notifications.NewService(st,
		notifications.WithLogger(log),
		notifications.WithDeliverer(deliverers),
		notifications.WithMetrics(notifications.NewMetrics(reg)),
	)

	limiter, closeLimiter, err := openRateLimiter(ctx, cfg.RateLimit, log)
	if err != nil {
		return err
	}
	defer closeLimiter()

	apiOpts := []httpapi.Option{
		httpapi.WithLogger(log),
		httpapi.WithStreamer(deliverer),
		httpapi.WithHeartbeat(cfg.SSEHeartbeat),
		httpapi.WithClientIPHeaders(cfg.ProxyHeaders...),
	}
	if limiter != nil {
		apiOpts = append(apiOpts, httpapi.WithRateLimiter(limiter))
	}
	if ingress != nil {
		apiOpts = append(apiOpts, httpapi.WithIngressTokens(ingress))
	}
	api := httpapi.New(svc, tokens, apiOpts...)

	var httpCfg httpserver.Config
	if err := config.Load(&httpCfg); err != nil {
		return err
	}
	server := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))

	var ingestCfg ingest.Config
	if err := config.Load(&ingestCfg); err != nil {
		return err
	}
	var consumer *ingest.Consumer
	if ingestCfg.Enabled() {
		if consumer, err = ingest.NewFromConfig(ingestCfg, svc, ingest.WithLogger(log)); err != nil {
			return err
		}
	} else {
		log.Info("Kafka ingest disabled")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx, newRouter(api, reg, st.ping, log))
	})
	if hooks != nil {
		g.Go(func() error { return hooks.Run(ctx) })
	}
	if consumer != nil {
		g.Go(func() error { return consumer.Run(ctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("notifyd stopped")
	return nil
}

func newRouter(api *httpapi.Handler, gatherer prometheus.Gatherer, ready func(context.Context) error, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Get("/health/live", httpserver.HealthCheckHandler(log))
	r.Get("/health/ready", httpserver.HealthCheckHandler(log, ready))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Mount("/", api.Router())
	return r
}
