package notifications

import "errors"

var (
	// ErrNotFound is returned when an operation references a nonexistent notification.
	ErrNotFound = errors.New("notification not found")

	// ErrForbidden is returned when the caller does not own the notification.
	ErrForbidden = errors.New("notification belongs to another user")

	// ErrInvalidType is returned for a type outside the closed enumeration.
	ErrInvalidType = errors.New("invalid notification type")

	// ErrDuplicateID is returned by storage when the id is already taken.
	ErrDuplicateID = errors.New("duplicate notification id")

	// ErrInvalidUserID is returned when a notification is created without an owner.
	ErrInvalidUserID = errors.New("user id is required")

	// ErrInvalidFilter is returned for an unknown filter key.
	ErrInvalidFilter = errors.New("invalid notification filter")
)

// IsDomainError reports whether err is one of the package's programming/data errors.
// Such errors are surfaced to the caller and never retried.
// Anything else (driver, network, timeout) is treated as a transport failure.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalidType) ||
		errors.Is(err, ErrDuplicateID) ||
		errors.Is(err, ErrInvalidUserID) ||
		errors.Is(err, ErrInvalidFilter)
}
