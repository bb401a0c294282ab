package webhook

import "time"

// Config holds the outbound webhook settings. Delivery is off when URL is empty.
type Config struct {
	URL             string        `env:"WEBHOOK_URL"`
	Secret          string        `env:"WEBHOOK_SECRET"`
	Timeout         time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s"`
	MaxRetries      uint64        `env:"WEBHOOK_MAX_RETRIES" envDefault:"3"`
	RetryInterval   time.Duration `env:"WEBHOOK_RETRY_INTERVAL" envDefault:"500ms"`
	QueueSize       int           `env:"WEBHOOK_QUEUE_SIZE" envDefault:"256"`
	Workers         int           `env:"WEBHOOK_WORKERS" envDefault:"2"`
	BreakerFailures int           `env:"WEBHOOK_BREAKER_FAILURES" envDefault:"5"`
	BreakerCooldown time.Duration `env:"WEBHOOK_BREAKER_COOLDOWN" envDefault:"30s"`
}

func (c Config) Enabled() bool {
	return c.URL != ""
}

// NewFromConfig builds a Deliverer with a circuit breaker from cfg.
func NewFromConfig(cfg Config, opts ...Option) (*Deliverer, error) {
	sender := NewSender(append([]Option{
		WithSecret(cfg.Secret),
		WithTimeout(cfg.Timeout),
		WithRetry(cfg.MaxRetries, cfg.RetryInterval),
		WithCircuitBreaker(NewCircuitBreaker(cfg.BreakerFailures, 2, cfg.BreakerCooldown)),
	}, opts...)...)

	return NewDeliverer(sender, cfg.URL,
		WithQueueSize(cfg.QueueSize),
		WithWorkers(cfg.Workers),
		WithDelivererLogger(sender.logger),
	)
}
