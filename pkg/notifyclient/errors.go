package notifyclient

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// ErrTransport marks failures reaching the backend: network errors,
// timeouts, cancellations and server faults. Domain errors never carry it.
var ErrTransport = errors.New("notification backend unavailable")

// classify leaves domain errors untouched and tags everything else as transport.
func classify(err error) error {
	if err == nil || notifications.IsDomainError(err) || errors.Is(err, ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
