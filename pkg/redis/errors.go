package redis

import "errors"

var (
	ErrParseURL = errors.New("redis: invalid connection URL")
	ErrNotReady = errors.New("redis: server did not answer PING in time")
)
