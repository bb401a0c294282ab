package notifications

import (
	"fmt"
	"slices"
	"time"
)

// Type is the closed set of notification categories.
type Type string

const (
	TypeInfo     Type = "info"
	TypeSuccess  Type = "success"
	TypeWarning  Type = "warning"
	TypeError    Type = "error"
	TypeSystem   Type = "system"
	TypeBooking  Type = "booking"
	TypePayment  Type = "payment"
	TypeReminder Type = "reminder"
	TypeWorkshop Type = "workshop"
	TypeMessage  Type = "message"
)

var allTypes = []Type{
	TypeInfo,
	TypeSuccess,
	TypeWarning,
	TypeError,
	TypeSystem,
	TypeBooking,
	TypePayment,
	TypeReminder,
	TypeWorkshop,
	TypeMessage,
}

// Types returns every notification type in declaration order.
func Types() []Type {
	return slices.Clone(allTypes)
}

// Valid reports whether t belongs to the closed enumeration.
func (t Type) Valid() bool {
	return slices.Contains(allTypes, t)
}

// ParseType converts a raw string into a Type.
// Returns ErrInvalidType for anything outside the enumeration.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}

// Tone is the presentation tone a client uses to style a notification.
type Tone string

const (
	ToneNeutral  Tone = "neutral"
	TonePositive Tone = "positive"
	ToneCaution  Tone = "caution"
	ToneCritical Tone = "critical"
)

// Tone maps the type to its display tone.
// Every type has an explicit case so a new type cannot silently fall through.
func (t Type) Tone() Tone {
	switch t {
	case TypeSuccess, TypePayment, TypeBooking:
		return TonePositive
	case TypeWarning, TypeReminder:
		return ToneCaution
	case TypeError:
		return ToneCritical
	case TypeInfo, TypeSystem, TypeWorkshop, TypeMessage:
		return ToneNeutral
	}
	panic(fmt.Sprintf("notifications: unhandled type %q", string(t)))
}

// Notification is a record of a system event targeted at one user.
// Everything except the read state is immutable once created.
type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Type      Type       `json:"type"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"created_at"`
	IsRead    bool       `json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

// MarkAsRead applies the Unread->Read transition.
// Returns false when the notification was already read; ReadAt is kept as is.
func (n *Notification) MarkAsRead(at time.Time) bool {
	if n.IsRead {
		return false
	}
	n.IsRead = true
	n.ReadAt = &at
	return true
}
