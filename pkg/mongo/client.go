package mongo

import (
	"context"
	"errors"

	"github.com/sethvargo/go-retry"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// New connects to cfg.ConnectionURL and returns the client after a
// successful ping. Failed attempts are disconnected and retried with
// exponential backoff.
func New(ctx context.Context, cfg Config) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(cfg.ConnectionURL).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime).
		SetRetryWrites(cfg.RetryWrites).
		SetRetryReads(cfg.RetryReads)

	var client *mongo.Client
	backoff := retry.WithMaxRetries(cfg.RetryAttempts, retry.NewExponential(cfg.RetryInterval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, err := mongo.Connect(opts)
		if err != nil {
			return retry.RetryableError(err)
		}
		if err := c.Ping(ctx, nil); err != nil {
			_ = c.Disconnect(context.WithoutCancel(ctx))
			return retry.RetryableError(err)
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, errors.Join(ErrConnect, err)
	}
	return client, nil
}

// NewWithDatabase connects and returns the handle for cfg.Database.
func NewWithDatabase(ctx context.Context, cfg Config) (*mongo.Database, error) {
	client, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return client.Database(cfg.Database), nil
}

// Ping checks that the primary answers. Failures wrap ErrNotReady.
func Ping(ctx context.Context, client *mongo.Client) error {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return errors.Join(ErrNotReady, err)
	}
	return nil
}
