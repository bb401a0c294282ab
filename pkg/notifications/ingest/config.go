package ingest

import "time"

// Config holds the Kafka consumer settings.
// Ingest is disabled when Brokers is empty.
type Config struct {
	Brokers       []string      `env:"KAFKA_BROKERS" envSeparator:","`
	Topic         string        `env:"KAFKA_TOPIC" envDefault:"notifications"`
	GroupID       string        `env:"KAFKA_GROUP_ID" envDefault:"notifyd"`
	MinBytes      int           `env:"KAFKA_MIN_BYTES" envDefault:"1"`
	MaxBytes      int           `env:"KAFKA_MAX_BYTES" envDefault:"10000000"`
	MaxWait       time.Duration `env:"KAFKA_MAX_WAIT" envDefault:"2s"`
	FetchBackoff  time.Duration `env:"KAFKA_FETCH_BACKOFF" envDefault:"1s"`
	RetryAttempts uint64        `env:"KAFKA_CREATE_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval time.Duration `env:"KAFKA_CREATE_RETRY_INTERVAL" envDefault:"100ms"`
}

// Enabled reports whether any broker is configured.
func (c Config) Enabled() bool {
	return len(c.Brokers) > 0
}
