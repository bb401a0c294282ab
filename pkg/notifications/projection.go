package notifications

import (
	"cmp"
	"fmt"
	"iter"
	"slices"
	"time"
)

// Predicate selects notifications for a filtered view.
type Predicate func(Notification) bool

// All matches every notification.
func All() Predicate {
	return func(Notification) bool { return true }
}

// UnreadOnly matches notifications that have not been read.
func UnreadOnly() Predicate {
	return func(n Notification) bool { return !n.IsRead }
}

// ReadOnly matches notifications that have been read.
func ReadOnly() Predicate {
	return func(n Notification) bool { return n.IsRead }
}

// ByType matches notifications of type t.
func ByType(t Type) Predicate {
	return func(n Notification) bool { return n.Type == t }
}

// Filter keys accepted by ParseFilter besides the type names.
const (
	FilterAll    = "all"
	FilterUnread = "unread"
	FilterRead   = "read"
)

// ParseFilter maps a caller-facing filter key (all, unread, read or a type name)
// to a Predicate. An empty key means all.
func ParseFilter(key string) (Predicate, error) {
	switch key {
	case "", FilterAll:
		return All(), nil
	case FilterUnread:
		return UnreadOnly(), nil
	case FilterRead:
		return ReadOnly(), nil
	}
	if t := Type(key); t.Valid() {
		return ByType(t), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidFilter, key)
}

// Filter lazily yields the notifications matching pred, preserving input order.
// A nil predicate matches everything.
func Filter(list []Notification, pred Predicate) iter.Seq[Notification] {
	if pred == nil {
		pred = All()
	}
	return func(yield func(Notification) bool) {
		for _, n := range list {
			if !pred(n) {
				continue
			}
			if !yield(n) {
				return
			}
		}
	}
}

// compareRecency orders by createdAt descending, then id descending.
func compareRecency(a, b Notification) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

// SortByRecency returns a stably sorted copy, most recent first.
func SortByRecency(list []Notification) []Notification {
	sorted := slices.Clone(list)
	slices.SortStableFunc(sorted, compareRecency)
	return sorted
}

// CountUnread counts unread notifications in a snapshot.
func CountUnread(list []Notification) int {
	count := 0
	for range Filter(list, UnreadOnly()) {
		count++
	}
	return count
}

// RelativeAge renders the elapsed time between createdAt and now for display.
// Timestamps in the future are treated as "just now".
func RelativeAge(createdAt, now time.Time) string {
	elapsed := now.Sub(createdAt)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm ago", int(elapsed/time.Minute))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(elapsed/time.Hour))
	case elapsed < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(elapsed/(24*time.Hour)))
	default:
		return createdAt.UTC().Format(time.DateOnly)
	}
}
