package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// Event is the message other services publish to request a notification.
type Event struct {
	UserID  string `json:"user_id"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Decode parses a message value into an Event and validates its type.
func Decode(value []byte) (Event, notifications.Type, error) {
	var ev Event
	if err := json.Unmarshal(value, &ev); err != nil {
		return Event{}, "", fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if ev.UserID == "" {
		return ev, "", fmt.Errorf("%w: %w", ErrInvalidPayload, notifications.ErrInvalidUserID)
	}
	typ, err := notifications.ParseType(ev.Type)
	if err != nil {
		return ev, "", fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return ev, typ, nil
}
