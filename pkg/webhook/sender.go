package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

const userAgent = "notifykit-webhook/1.0"

// Sender POSTs signed JSON payloads with retries and an optional circuit breaker.
type Sender struct {
	client     *http.Client
	secret     string
	timeout    time.Duration
	maxRetries uint64
	backoff    time.Duration
	breaker    *CircuitBreaker
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Sender)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) {
		if c != nil {
			s.client = c
		}
	}
}

// WithSecret signs every request with HMAC-SHA256.
func WithSecret(secret string) Option {
	return func(s *Sender) { s.secret = secret }
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) Option {
	return func(s *Sender) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRetry sets the retry count and the base of the exponential backoff.
func WithRetry(maxRetries uint64, base time.Duration) Option {
	return func(s *Sender) {
		s.maxRetries = maxRetries
		if base > 0 {
			s.backoff = base
		}
	}
}

func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(s *Sender) { s.breaker = cb }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sender) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Sender) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSender(opts ...Option) *Sender {
	s := &Sender{
		client:     &http.Client{},
		timeout:    10 * time.Second,
		maxRetries: 3,
		backoff:    500 * time.Millisecond,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send posts payload to target. Network errors, 5xx, 408, 425 and 429 are
// retried; other 4xx answers fail at once with ErrPermanentFailure.
// The same delivery id is sent on every attempt.
func (s *Sender) Send(ctx context.Context, target string, payload []byte) error {
	if err := validateURL(target); err != nil {
		return err
	}
	if s.breaker != nil && !s.breaker.Allow() {
		return ErrCircuitOpen
	}

	id := uuid.NewString()
	attempt := 0
	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 && s.breaker != nil && !s.breaker.Allow() {
			return ErrCircuitOpen
		}
		status, err := s.attempt(ctx, target, id, payload)
		if err == nil {
			s.record(nil)
			return nil
		}
		s.record(err)
		s.logger.DebugContext(ctx, "Webhook attempt failed",
			slog.String("delivery_id", id),
			logger.RetryCount(attempt-1),
			logger.Error(err),
		)
		if permanent(status) {
			return fmt.Errorf("%w: %w", ErrPermanentFailure, err)
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		if errors.Is(err, ErrPermanentFailure) || errors.Is(err, ErrCircuitOpen) {
			return err
		}
		return fmt.Errorf("%w after %d attempts: %w", ErrDeliveryFailed, attempt, err)
	}
	return nil
}

func (s *Sender) record(err error) {
	if s.breaker == nil {
		return
	}
	if err == nil {
		s.breaker.RecordSuccess()
	} else {
		s.breaker.RecordFailure()
	}
}

func (s *Sender) attempt(ctx context.Context, target, id string, payload []byte) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(HeaderID, id)
	if s.secret != "" {
		ts := s.now().Unix()
		req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
		req.Header.Set(HeaderSignature, Sign(s.secret, ts, payload))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return resp.StatusCode, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(strings.ReplaceAll(string(body), "\n", " "))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return resp.StatusCode, fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, msg)
}

func permanent(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return true
}

func validateURL(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return nil
}
