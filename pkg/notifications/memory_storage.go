package notifications

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryStorage is an in-memory implementation of the Storage interface.
// Suitable for development and testing.
type MemoryStorage struct {
	records map[string]Notification // id -> notification
	byUser  map[string][]string     // userID -> ids
	mu      sync.RWMutex
}

// NewMemoryStorage creates a new in-memory notification storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]Notification),
		byUser:  make(map[string][]string),
	}
}

func (s *MemoryStorage) Put(ctx context.Context, notif Notification) error {
	if notif.ID == "" {
		return errors.New("notification ID is required")
	}
	if notif.UserID == "" {
		return ErrInvalidUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[notif.ID]; exists {
		return ErrDuplicateID
	}

	s.records[notif.ID] = notif
	s.byUser[notif.UserID] = append(s.byUser[notif.UserID], notif.ID)
	return nil
}

func (s *MemoryStorage) Get(ctx context.Context, id string) (Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notif, ok := s.records[id]
	if !ok {
		return Notification{}, ErrNotFound
	}
	return notif, nil
}

func (s *MemoryStorage) ListByUser(ctx context.Context, userID string) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byUser[userID]
	result := make([]Notification, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.records[id])
	}
	return result, nil
}

func (s *MemoryStorage) UpdateReadState(ctx context.Context, id string, readAt time.Time) (Notification, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	notif, ok := s.records[id]
	if !ok {
		return Notification{}, false, ErrNotFound
	}
	changed := notif.MarkAsRead(readAt)
	if changed {
		s.records[id] = notif
	}
	return notif, changed, nil
}

func (s *MemoryStorage) UpdateAllReadForUser(ctx context.Context, userID string, readAt time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for _, id := range s.byUser[userID] {
		notif := s.records[id]
		if notif.MarkAsRead(readAt) {
			s.records[id] = notif
			changed++
		}
	}
	return changed, nil
}
