package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// Stores differ in timestamp precision (Mongo keeps milliseconds),
// so the service normalises every timestamp it issues.
const timePrecision = time.Millisecond

// Service enforces ownership and the read-state machine on top of a Storage.
// It is the only component that constructs or mutates notifications.
type Service struct {
	storage   Storage
	deliverer Deliverer
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
	newID     func() (string, error)

	// newest createdAt issued by this service. Clamping against it keeps
	// createdAt non-decreasing for every user when the wall clock steps back.
	clockMu     sync.Mutex
	lastCreated time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger for the Service.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDeliverer sets the real-time deliverer used after a notification is stored.
func WithDeliverer(d Deliverer) ServiceOption {
	return func(s *Service) {
		if d != nil {
			s.deliverer = d
		}
	}
}

// WithMetrics enables prometheus instrumentation.
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides id assignment.
// Generated ids must sort in assignment order.
func WithIDGenerator(fn func() (string, error)) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewService creates a notification service backed by storage.
func NewService(storage Storage, opts ...ServiceOption) *Service {
	s := &Service{
		storage:   storage,
		deliverer: &NoOpDeliverer{},
		logger:    slog.Default(),
		now:       time.Now,
		newID:     newUUIDv7,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func newUUIDv7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Create stores a new unread notification for userID and then attempts
// best-effort real-time delivery.
func (s *Service) Create(ctx context.Context, userID string, typ Type, message string) (Notification, error) {
	id, err := s.NewID()
	if err != nil {
		return Notification{}, err
	}
	return s.CreateWithID(ctx, id, userID, typ, message)
}

// NewID reserves an id for CreateWithID.
func (s *Service) NewID() (string, error) {
	id, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("failed to generate notification id: %w", err)
	}
	return id, nil
}

// CreateWithID behaves like Create with a caller-chosen id. Repeating a call
// whose write already landed fails with ErrDuplicateID instead of storing a
// second record.
func (s *Service) CreateWithID(ctx context.Context, id, userID string, typ Type, message string) (Notification, error) {
	if strings.TrimSpace(userID) == "" {
		return Notification{}, ErrInvalidUserID
	}
	if !typ.Valid() {
		return Notification{}, fmt.Errorf("%w: %q", ErrInvalidType, string(typ))
	}

	notif := Notification{
		ID:        id,
		UserID:    userID,
		Type:      typ,
		Message:   message,
		CreatedAt: s.createdAt(),
	}

	// Store first to ensure persistence even if real-time delivery fails
	if err := s.storage.Put(ctx, notif); err != nil {
		return Notification{}, fmt.Errorf("failed to store notification: %w", err)
	}
	s.metrics.observeCreated(typ)

	if err := s.deliverer.Deliver(ctx, notif); err != nil {
		s.metrics.observeDeliveryFailure()
		s.logger.LogAttrs(ctx, slog.LevelWarn, "Failed to deliver notification, but it was stored successfully",
			logger.NotificationID(notif.ID),
			logger.UserID(notif.UserID),
			logger.Error(err),
		)
	}

	return notif, nil
}

func (s *Service) createdAt() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()

	now := s.now().UTC().Truncate(timePrecision)
	if now.Before(s.lastCreated) {
		now = s.lastCreated
	}
	s.lastCreated = now
	return now
}

// ListForUser returns all notifications of userID, most recent first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Notification, error) {
	list, err := s.storage.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	if list == nil {
		return []Notification{}, nil
	}
	return SortByRecency(list), nil
}

// UnreadCount is derived from the listed records; there is no separate counter.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	list, err := s.ListForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return CountUnread(list), nil
}

// Get returns a single notification owned by requestingUserID.
func (s *Service) Get(ctx context.Context, id, requestingUserID string) (Notification, error) {
	notif, err := s.storage.Get(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if notif.UserID != requestingUserID {
		return Notification{}, ErrForbidden
	}
	return notif, nil
}

// MarkRead marks one notification as read on behalf of its owner.
// Marking an already-read notification is a no-op that returns the record.
func (s *Service) MarkRead(ctx context.Context, id, requestingUserID string) (Notification, error) {
	notif, err := s.Get(ctx, id, requestingUserID)
	if err != nil {
		return Notification{}, err
	}
	if notif.IsRead {
		return notif, nil
	}

	updated, changed, err := s.storage.UpdateReadState(ctx, id, s.now().UTC().Truncate(timePrecision))
	if err != nil {
		return Notification{}, fmt.Errorf("failed to mark notification read: %w", err)
	}
	if changed {
		s.metrics.observeMarked(opMarkOne, 1)
	}

	return updated, nil
}

// MarkAllRead marks every unread notification of userID as read and
// returns how many records transitioned.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	changed, err := s.storage.UpdateAllReadForUser(ctx, userID, s.now().UTC().Truncate(timePrecision))
	if err != nil {
		return 0, fmt.Errorf("failed to mark all notifications read: %w", err)
	}
	s.metrics.observeMarked(opMarkAll, changed)

	s.logger.LogAttrs(ctx, slog.LevelDebug, "Marked all notifications read",
		logger.UserID(userID),
		slog.Int("updated", changed),
	)

	return changed, nil
}

// Storage returns the underlying notification storage.
func (s *Service) Storage() Storage {
	return s.storage
}
