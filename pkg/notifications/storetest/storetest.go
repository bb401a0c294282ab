// Package storetest provides a conformance suite for notifications.Storage
// implementations. Each backend runs the same suite from its own tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// Factory returns an empty storage. Cleanup should be registered on t.
type Factory func(t *testing.T) notifications.Storage

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// Record builds a valid unread notification for userID created offset after a fixed base time.
func Record(userID string, typ notifications.Type, offset time.Duration) notifications.Notification {
	return notifications.Notification{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    userID,
		Type:      typ,
		Message:   fmt.Sprintf("%s for %s", typ, userID),
		CreatedAt: base.Add(offset),
	}
}

// Run executes the conformance suite against storages produced by newStorage.
func Run(t *testing.T, newStorage Factory) {
	t.Helper()

	t.Run("put and get", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		want := Record("user-1", notifications.TypeBooking, 0)

		require.NoError(t, s.Put(ctx, want))

		got, err := s.Get(ctx, want.ID)
		require.NoError(t, err)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.UserID, got.UserID)
		assert.Equal(t, want.Type, got.Type)
		assert.Equal(t, want.Message, got.Message)
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at: want %s, got %s", want.CreatedAt, got.CreatedAt)
		assert.False(t, got.IsRead)
		assert.Nil(t, got.ReadAt)
	})

	t.Run("put duplicate id", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		n := Record("user-1", notifications.TypeInfo, 0)

		require.NoError(t, s.Put(ctx, n))

		other := Record("user-2", notifications.TypeError, time.Minute)
		other.ID = n.ID
		err := s.Put(ctx, other)
		assert.ErrorIs(t, err, notifications.ErrDuplicateID)

		got, err := s.Get(ctx, n.ID)
		require.NoError(t, err)
		assert.Equal(t, "user-1", got.UserID, "original record must survive a duplicate put")
	})

	t.Run("get missing", func(t *testing.T) {
		s := newStorage(t)
		_, err := s.Get(context.Background(), uuid.NewString())
		assert.ErrorIs(t, err, notifications.ErrNotFound)
	})

	t.Run("list by user", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		for i := range 3 {
			require.NoError(t, s.Put(ctx, Record("user-1", notifications.TypeBooking, time.Duration(i)*time.Minute)))
		}
		require.NoError(t, s.Put(ctx, Record("user-2", notifications.TypePayment, 0)))

		list, err := s.ListByUser(ctx, "user-1")
		require.NoError(t, err)
		assert.Len(t, list, 3)
		for _, n := range list {
			assert.Equal(t, "user-1", n.UserID)
		}

		empty, err := s.ListByUser(ctx, "nobody")
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})

	t.Run("update read state is idempotent", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		n := Record("user-1", notifications.TypeReminder, 0)
		require.NoError(t, s.Put(ctx, n))

		first := base.Add(time.Hour)
		got, changed, err := s.UpdateReadState(ctx, n.ID, first)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.True(t, got.IsRead)
		require.NotNil(t, got.ReadAt)
		assert.True(t, first.Equal(*got.ReadAt))

		got, changed, err = s.UpdateReadState(ctx, n.ID, base.Add(2*time.Hour))
		require.NoError(t, err)
		assert.False(t, changed)
		assert.True(t, got.IsRead)
		require.NotNil(t, got.ReadAt)
		assert.True(t, first.Equal(*got.ReadAt), "read_at must not change once set")

		stored, err := s.Get(ctx, n.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsRead)
	})

	t.Run("update read state missing", func(t *testing.T) {
		s := newStorage(t)
		_, changed, err := s.UpdateReadState(context.Background(), uuid.NewString(), base)
		assert.ErrorIs(t, err, notifications.ErrNotFound)
		assert.False(t, changed)
	})

	t.Run("update all read for user", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		var ids []string
		for i := range 4 {
			n := Record("user-1", notifications.TypeMessage, time.Duration(i)*time.Minute)
			ids = append(ids, n.ID)
			require.NoError(t, s.Put(ctx, n))
		}
		other := Record("user-2", notifications.TypeMessage, 0)
		require.NoError(t, s.Put(ctx, other))

		_, _, err := s.UpdateReadState(ctx, ids[0], base)
		require.NoError(t, err)

		changed, err := s.UpdateAllReadForUser(ctx, "user-1", base.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 3, changed)

		changed, err = s.UpdateAllReadForUser(ctx, "user-1", base.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, changed)

		list, err := s.ListByUser(ctx, "user-1")
		require.NoError(t, err)
		for _, n := range list {
			assert.True(t, n.IsRead)
		}

		untouched, err := s.Get(ctx, other.ID)
		require.NoError(t, err)
		assert.False(t, untouched.IsRead)

		changed, err = s.UpdateAllReadForUser(ctx, "nobody", base)
		require.NoError(t, err)
		assert.Equal(t, 0, changed)
	})

	t.Run("concurrent update read state", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		n := Record("user-1", notifications.TypeWorkshop, 0)
		require.NoError(t, s.Put(ctx, n))

		const workers = 8
		var wg sync.WaitGroup
		errs := make([]error, workers)
		changed := make([]bool, workers)
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, changed[i], errs[i] = s.UpdateReadState(ctx, n.ID, base.Add(time.Duration(i+1)*time.Second))
			}()
		}
		wg.Wait()

		transitions := 0
		for i, err := range errs {
			assert.NoError(t, err)
			if changed[i] {
				transitions++
			}
		}
		assert.Equal(t, 1, transitions, "exactly one caller makes the transition")

		got, err := s.Get(ctx, n.ID)
		require.NoError(t, err)
		assert.True(t, got.IsRead)
		require.NotNil(t, got.ReadAt)
	})

	t.Run("concurrent update all counts each record once", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()

		const records = 10
		for i := range records {
			require.NoError(t, s.Put(ctx, Record("user-1", notifications.TypeSystem, time.Duration(i)*time.Second)))
		}

		const workers = 4
		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			total int
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				changed, err := s.UpdateAllReadForUser(ctx, "user-1", base.Add(time.Hour))
				assert.NoError(t, err)
				mu.Lock()
				total += changed
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Equal(t, records, total)
	})
}
