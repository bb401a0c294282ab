package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Creator creates notifications under a caller-reserved id.
// *notifications.Service satisfies it.
type Creator interface {
	NewID() (string, error)
	CreateWithID(ctx context.Context, id, userID string, typ notifications.Type, message string) (notifications.Notification, error)
}

// Consumer turns Kafka events into notifications.
// Every fetched message is committed once handled, including messages that
// could not be decoded or created. Delivery is at-least-once: a message
// redelivered after a crash before its commit is stored again.
type Consumer struct {
	reader        MessageReader
	creator       Creator
	logger        *slog.Logger
	fetchBackoff  time.Duration
	retryAttempts uint64
	retryInterval time.Duration
}

type Option func(*Consumer)

func WithLogger(l *slog.Logger) Option {
	return func(c *Consumer) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithFetchBackoff sets the pause after a failed fetch.
func WithFetchBackoff(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.fetchBackoff = d
		}
	}
}

// WithRetry sets how often a failed Create is retried before the event is dropped.
func WithRetry(attempts uint64, interval time.Duration) Option {
	return func(c *Consumer) {
		c.retryAttempts = attempts
		if interval > 0 {
			c.retryInterval = interval
		}
	}
}

func NewConsumer(reader MessageReader, creator Creator, opts ...Option) *Consumer {
	c := &Consumer{
		reader:        reader,
		creator:       creator,
		logger:        slog.Default(),
		fetchBackoff:  time.Second,
		retryAttempts: 3,
		retryInterval: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.Component("ingest"))
	return c
}

// NewReader builds a consumer-group reader from cfg.
func NewReader(cfg Config) (*kafka.Reader, error) {
	if !cfg.Enabled() {
		return nil, ErrNoBrokers
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
		MaxWait:  cfg.MaxWait,
	}), nil
}

// NewFromConfig wires a reader built from cfg into a Consumer.
func NewFromConfig(cfg Config, creator Creator, opts ...Option) (*Consumer, error) {
	reader, err := NewReader(cfg)
	if err != nil {
		return nil, err
	}
	opts = append([]Option{
		WithFetchBackoff(cfg.FetchBackoff),
		WithRetry(cfg.RetryAttempts, cfg.RetryInterval),
	}, opts...)
	return NewConsumer(reader, creator, opts...), nil
}

// Run consumes until ctx is done and then closes the reader.
// It returns nil on cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Warn("Failed to close kafka reader", logger.Error(err))
		}
	}()

	c.logger.InfoContext(ctx, "Kafka consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Kafka consumer stopped")
				return nil
			}
			c.logger.ErrorContext(ctx, "Failed to fetch kafka message", logger.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.fetchBackoff):
			}
			continue
		}

		c.Handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.ErrorContext(ctx, "Failed to commit kafka message",
				slog.Int64("offset", msg.Offset),
				logger.Error(err),
			)
		}
	}
}

// Handle decodes msg and creates the notification it describes.
// Transient create failures are retried under one id, so a write that landed
// before its error surfaced is not stored twice. The returned error is only
// for logging.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	ev, typ, err := Decode(msg.Value)
	if err != nil {
		c.logger.WarnContext(ctx, "Dropping invalid notification event",
			slog.Int64("offset", msg.Offset),
			logger.Error(err),
		)
		return err
	}

	id, err := c.creator.NewID()
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to reserve notification id",
			slog.Int64("offset", msg.Offset),
			logger.Error(err),
		)
		return err
	}

	backoff := retry.WithMaxRetries(c.retryAttempts, retry.NewExponential(c.retryInterval))
	created := notifications.Notification{ID: id, UserID: ev.UserID}
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		n, err := c.creator.CreateWithID(ctx, id, ev.UserID, typ, ev.Message)
		switch {
		case err == nil:
			created = n
			return nil
		case attempt > 1 && errors.Is(err, notifications.ErrDuplicateID):
			// An earlier attempt stored the record before failing.
			return nil
		case notifications.IsDomainError(err):
			return err
		default:
			return retry.RetryableError(err)
		}
	})
	if err != nil {
		level := slog.LevelError
		if notifications.IsDomainError(err) {
			level = slog.LevelWarn
		}
		c.logger.LogAttrs(ctx, level, "Failed to create notification from event",
			logger.UserID(ev.UserID),
			logger.NotificationType(ev.Type),
			slog.Int64("offset", msg.Offset),
			logger.Error(err),
		)
		return err
	}

	c.logger.DebugContext(ctx, "Created notification from event",
		logger.NotificationID(created.ID),
		logger.UserID(created.UserID),
	)
	return nil
}
