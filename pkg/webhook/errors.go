package webhook

import "errors"

var (
	ErrDeliveryFailed   = errors.New("webhook delivery failed")
	ErrPermanentFailure = errors.New("permanent webhook failure")
	ErrCircuitOpen      = errors.New("webhook circuit breaker is open")
	ErrInvalidURL       = errors.New("invalid webhook URL")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMissingSecret    = errors.New("webhook secret is required")
	ErrQueueFull        = errors.New("webhook queue is full")
)
