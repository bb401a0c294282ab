package ingest

import "errors"

var (
	// ErrInvalidPayload is returned for a message that is not a valid create event.
	ErrInvalidPayload = errors.New("invalid notification event payload")

	// ErrNoBrokers is returned by NewReader when the config lists no brokers.
	ErrNoBrokers = errors.New("no kafka brokers configured")
)
