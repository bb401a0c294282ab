package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/notifykit/pkg/config"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/mongo"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/notifications/mongostore"
	"github.com/dmitrymomot/notifykit/pkg/notifications/pgstore"
	"github.com/dmitrymomot/notifykit/pkg/notifications/redisstore"
	"github.com/dmitrymomot/notifykit/pkg/notifications/sqlitestore"
	"github.com/dmitrymomot/notifykit/pkg/pg"
	"github.com/dmitrymomot/notifykit/pkg/redis"
)

// store bundles the selected storage with its readiness check and teardown.
type store struct {
	notifications.Storage
	ping  func(context.Context) error
	close func()
}

// openStore connects the storage named by backend. Each backend reads its own
// environment variables, so only the selected one has to be configured.
func openStore(ctx context.Context, backend, redisPrefix string, log *slog.Logger) (*store, error) {
	log = log.With(logger.Backend(backend))

	switch backend {
	case BackendMemory:
		return &store{
			Storage: notifications.NewMemoryStorage(),
			ping:    func(context.Context) error { return nil },
			close:   func() {},
		}, nil

	case BackendSQLite:
		var cfg sqlitestore.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		s, err := sqlitestore.Open(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return &store{Storage: s, ping: s.Ping, close: func() {
			if err := s.Close(); err != nil {
				log.Error("Failed to close sqlite store", logger.Error(err))
			}
		}}, nil

	case BackendPostgres:
		var cfg pg.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := pgstore.Migrate(ctx, pool, cfg, log); err != nil {
			pool.Close()
			return nil, err
		}
		s := pgstore.New(pool)
		return &store{Storage: s, ping: s.Ping, close: pool.Close}, nil

	case BackendRedis:
		var cfg redis.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		client, err := redis.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s := redisstore.New(client, redisstore.WithPrefix(redisPrefix))
		return &store{Storage: s, ping: s.Ping, close: func() {
			if err := client.Close(); err != nil {
				log.Error("Failed to close redis client", logger.Error(err))
			}
		}}, nil

	case BackendMongo:
		var cfg mongo.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		client, err := mongo.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s, err := mongostore.New(ctx, client.Database(cfg.Database), mongostore.DefaultCollection)
		if err != nil {
			_ = client.Disconnect(context.WithoutCancel(ctx))
			return nil, err
		}
		return &store{Storage: s, ping: s.Ping, close: func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Error("Failed to disconnect mongo client", logger.Error(err))
			}
		}}, nil
	}

	return nil, fmt.Errorf("unknown store backend %q", backend)
}
