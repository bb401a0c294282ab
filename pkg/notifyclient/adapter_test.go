package notifyclient_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/notifyclient"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) ListForUser(ctx context.Context, userID string) ([]notifications.Notification, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]notifications.Notification), args.Error(1)
}

func (m *MockBackend) MarkRead(ctx context.Context, id, userID string) (notifications.Notification, error) {
	args := m.Called(ctx, id, userID)
	return args.Get(0).(notifications.Notification), args.Error(1)
}

func (m *MockBackend) MarkAllRead(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

var (
	base     = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	errNet   = errors.New("connection refused")
	anyCtx   = mock.Anything
	fixedNow = func() time.Time { return base.Add(time.Hour) }
)

func fixture() []notifications.Notification {
	return []notifications.Notification{
		{ID: "n1", UserID: "u1", Type: notifications.TypeBooking, Message: "Booking confirmed", CreatedAt: base},
		{ID: "n3", UserID: "u1", Type: notifications.TypeReminder, Message: "Workshop tomorrow", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "n2", UserID: "u1", Type: notifications.TypePayment, Message: "Payment received", CreatedAt: base.Add(time.Minute)},
	}
}

func newAdapter(b notifyclient.Backend, opts ...notifyclient.Option) *notifyclient.Adapter {
	defaults := []notifyclient.Option{
		notifyclient.WithLogger(logger.Discard()),
		notifyclient.WithClock(fixedNow),
		notifyclient.WithRetry(0, time.Millisecond),
	}
	return notifyclient.NewAdapter(b, append(defaults, opts...)...)
}

func ids(items []notifications.Notification) []string {
	out := make([]string, 0, len(items))
	for _, n := range items {
		out = append(out, n.ID)
	}
	return out
}

func TestAdapter_FetchAll(t *testing.T) {
	t.Run("fresh snapshot is sorted", func(t *testing.T) {
		b := &MockBackend{}
		b.On("ListForUser", anyCtx, "u1").Return(fixture(), nil).Once()
		a := newAdapter(b)

		snap, err := a.FetchAll(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"n3", "n2", "n1"}, ids(snap.Items))
		assert.Equal(t, 3, snap.UnreadCount)
		assert.False(t, snap.Stale)
		assert.NoError(t, snap.Err)
		assert.Equal(t, fixedNow(), snap.FetchedAt)
		b.AssertExpectations(t)
	})

	t.Run("transport failure serves last snapshot", func(t *testing.T) {
		b := &MockBackend{}
		b.On("ListForUser", anyCtx, "u1").Return(fixture(), nil).Once()
		b.On("ListForUser", anyCtx, "u1").Return(nil, errNet).Once()
		a := newAdapter(b)

		_, err := a.FetchAll(context.Background(), "u1")
		require.NoError(t, err)

		snap, err := a.FetchAll(context.Background(), "u1")
		require.NoError(t, err)
		assert.True(t, snap.Stale)
		assert.ErrorIs(t, snap.Err, notifyclient.ErrTransport)
		assert.ErrorIs(t, snap.Err, errNet)
		assert.Equal(t, []string{"n3", "n2", "n1"}, ids(snap.Items))
		assert.ErrorIs(t, a.LastError("u1"), notifyclient.ErrTransport)
	})

	t.Run("first load failure is empty and stale", func(t *testing.T) {
		b := &MockBackend{}
		b.On("ListForUser", anyCtx, "u1").Return(nil, errNet)
		a := newAdapter(b)

		snap, err := a.FetchAll(context.Background(), "u1")
		require.NoError(t, err)
		assert.True(t, snap.Stale)
		assert.NotNil(t, snap.Items)
		assert.Empty(t, snap.Items)
		assert.Zero(t, snap.UnreadCount)
	})

	t.Run("domain error is returned", func(t *testing.T) {
		b := &MockBackend{}
		b.On("ListForUser", anyCtx, "").Return(nil, notifications.ErrInvalidUserID).Once()
		a := newAdapter(b, notifyclient.WithRetry(3, time.Millisecond))

		_, err := a.FetchAll(context.Background(), "")
		assert.ErrorIs(t, err, notifications.ErrInvalidUserID)
		assert.NotErrorIs(t, err, notifyclient.ErrTransport)
		b.AssertNumberOfCalls(t, "ListForUser", 1)
	})

	t.Run("transport failures are retried", func(t *testing.T) {
		b := &MockBackend{}
		b.On("ListForUser", anyCtx, "u1").Return(nil, errNet).Twice()
		b.On("ListForUser", anyCtx, "u1").Return(fixture(), nil).Once()
		a := newAdapter(b, notifyclient.WithRetry(2, time.Millisecond))

		snap, err := a.FetchAll(context.Background(), "u1")
		require.NoError(t, err)
		assert.False(t, snap.Stale)
		assert.Len(t, snap.Items, 3)
		b.AssertNumberOfCalls(t, "ListForUser", 3)
	})

	t.Run("call timeout counts as transport failure", func(t *testing.T) {
		b := &MockBackend{}
		b.On("ListForUser", anyCtx, "u1").Return(nil, context.DeadlineExceeded).Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		})
		a := newAdapter(b, notifyclient.WithCallTimeout(10*time.Millisecond))

		snap, err := a.FetchAll(context.Background(), "u1")
		require.NoError(t, err)
		assert.True(t, snap.Stale)
		assert.ErrorIs(t, snap.Err, context.DeadlineExceeded)
	})

	t.Run("returned snapshot is a copy", func(t *testing.T) {
		b := &MockBackend{}
		b.On("ListForUser", anyCtx, "u1").Return(fixture(), nil).Once()
		a := newAdapter(b)

		snap, err := a.FetchAll(context.Background(), "u1")
		require.NoError(t, err)
		snap.Items[0].Message = "tampered"

		cached, ok := a.Snapshot("u1")
		require.True(t, ok)
		assert.Equal(t, "Workshop tomorrow", cached.Items[0].Message)
	})
}

func TestAdapter_MaxStaleness(t *testing.T) {
	now := base
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	b := &MockBackend{}
	b.On("ListForUser", anyCtx, "u1").Return(fixture(), nil).Once()
	b.On("ListForUser", anyCtx, "u1").Return(nil, errNet)
	a := newAdapter(b, notifyclient.WithClock(clock), notifyclient.WithMaxStaleness(time.Minute))

	_, err := a.FetchAll(context.Background(), "u1")
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	snap, err := a.FetchAll(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, snap.Stale)
	assert.Empty(t, snap.Items)
}

func TestAdapter_MarkOneOptimistic(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		b := &MockBackend{}
		b.On("ListForUser", anyCtx, "u1").Return(fixture(), nil).Once()
		readAt := base.Add(30 * time.Minute)
		confirmed := fixture()[0]
		confirmed.MarkAsRead(readAt)
		b.On("MarkRead", anyCtx, "n1", "u1").Return(confirmed, nil).Once()
		a := newAdapter(b)

		_, err := a.FetchAll(context.Background(), "u1")
		require.NoError(t, err)
		require.NoError(t, a.MarkOneOptimistic(context.Background(), "u1", "n1"))

		snap, ok := a.Snapshot("u1")
		require.True(t, ok)
		assert.Equal(t, 2, snap.UnreadCount)
		n1 := snap.Items[2]
		require.Equal(t, "n1", n1.ID)
		assert.True(t, n1.IsRead)
		assert.True(t, readAt.Equal(*n1.ReadAt), "backend read_at replaces the local one")
	})

	t.Run("failure keeps the local flip", func(t *testing.T) {
		b := &MockBackend{}
		b.On("ListForUser", anyCtx, "u1").Return(fixture(), nil).Once()
		b.On("MarkRead", anyCtx, "n2", "u1").Return(notifications.Notification{}, errNet)
		a := newAdapter(b)

		_, err := a.FetchAll(context.Background(), "u1")
		require.NoError(t, err)

		err = a.MarkOneOptimistic(context.Background(), "u1", "n2")
		assert.ErrorIs(t, err, notifyclient.ErrTransport)

		snap, ok := a.Snapshot("u1")
		require.True(t, ok)
		assert.True(t, snap.Items[1].IsRead)
		assert.Equal(t, 2, snap.UnreadCount)
		assert.ErrorIs(t, snap.Err, notifyclient.ErrTransport)
	})

	t.Run("domain error keeps the local flip", func(t *testing.T) {
		b := &MockBackend{}
		b.On("ListForUser", anyCtx, "u1").Return(fixture(), nil).Once()
		b.On("MarkRead", anyCtx, "n3", "u1").Return(notifications.Notification{}, notifications.ErrForbidden).Once()
		a := newAdapter(b, notifyclient.WithRetry(3, time.Millisecond))

		_, err := a.FetchAll(context.Background(), "u1")
		require.NoError(t, err)

		err = a.MarkOneOptimistic(context.Background(), "u1", "n3")
		assert.ErrorIs(t, err, notifications.ErrForbidden)

		snap, _ := a.Snapshot("u1")
		assert.True(t, snap.Items[0].IsRead)
		b.AssertNumberOfCalls(t, "MarkRead", 1)
	})

	t.Run("without a snapshot only the backend is called", func(t *testing.T) {
		b := &MockBackend{}
		b.On("MarkRead", anyCtx, "missing", "u1").Return(notifications.Notification{}, notifications.ErrNotFound).Once()
		a := newAdapter(b)

		err := a.MarkOneOptimistic(context.Background(), "u1", "missing")
		assert.ErrorIs(t, err, notifications.ErrNotFound)
		_, ok := a.Snapshot("u1")
		assert.False(t, ok)
		assert.ErrorIs(t, a.LastError("u1"), notifications.ErrNotFound)
	})

	t.Run("transport failure without a snapshot is recorded", func(t *testing.T) {
		b := &MockBackend{}
		b.On("MarkRead", anyCtx, "n1", "u1").Return(notifications.Notification{}, errNet)
		a := newAdapter(b)

		err := a.MarkOneOptimistic(context.Background(), "u1", "n1")
		assert.ErrorIs(t, err, notifyclient.ErrTransport)
		assert.ErrorIs(t, a.LastError("u1"), errNet)
	})
}

// pausedList makes the next ListForUser call block until release is closed
// and returns a channel closed once the call has started.
func pausedList(b *MockBackend, userID string, items []notifications.Notification, release <-chan struct{}) <-chan struct{} {
	started := make(chan struct{})
	b.On("ListForUser", anyCtx, userID).Return(items, nil).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Once()
	return started
}

func fetchAsync(a *notifyclient.Adapter, userID string) <-chan notifyclient.Snapshot {
	out := make(chan notifyclient.Snapshot, 1)
	go func() {
		snap, _ := a.FetchAll(context.Background(), userID)
		out <- snap
	}()
	return out
}

func TestAdapter_FetchInFlightDuringMark(t *testing.T) {
	t.Run("confirmed mark survives an older fetch", func(t *testing.T) {
		b := &MockBackend{}
		b.On("ListForUser", anyCtx, "u1").Return(fixture(), nil).Once()
		release := make(chan struct{})
		started := pausedList(b, "u1", fixture(), release)
		confirmed := fixture()[0]
		confirmed.MarkAsRead(base.Add(time.Minute))
		b.On("MarkRead", anyCtx, "n1", "u1").Return(confirmed, nil).Once()
		a := newAdapter(b)

		_, err := a.FetchAll(context.Background(), "u1")
		require.NoError(t, err)

		result := fetchAsync(a, "u1")
		<-started
		require.NoError(t, a.MarkOneOptimistic(context.Background(), "u1", "n1"))
		close(release)
		snap := <-result

		assert.Equal(t, 2, snap.UnreadCount)
		cached, _ := a.Snapshot("u1")
		assert.Equal(t, 2, cached.UnreadCount)
		assert.True(t, cached.Items[2].IsRead)
	})

	t.Run("mark during the first load", func(t *testing.T) {
		b := &MockBackend{}
		release := make(chan struct{})
		started := pausedList(b, "u1", fixture(), release)
		b.On("MarkRead", anyCtx, "n3", "u1").Return(notifications.Notification{}, errNet)
		a := newAdapter(b)

		result := fetchAsync(a, "u1")
		<-started
		assert.Error(t, a.MarkOneOptimistic(context.Background(), "u1", "n3"))
		close(release)
		snap := <-result

		require.Equal(t, "n3", snap.Items[0].ID)
		assert.True(t, snap.Items[0].IsRead)
		assert.Equal(t, fixedNow(), *snap.Items[0].ReadAt)
		assert.Equal(t, 2, snap.UnreadCount)
	})

	t.Run("mark all survives an older fetch", func(t *testing.T) {
		b := &MockBackend{}
		b.On("ListForUser", anyCtx, "u1").Return(fixture(), nil).Once()
		release := make(chan struct{})
		started := pausedList(b, "u1", fixture(), release)
		b.On("MarkAllRead", anyCtx, "u1").Return(3, nil).Once()
		a := newAdapter(b)

		_, err := a.FetchAll(context.Background(), "u1")
		require.NoError(t, err)

		result := fetchAsync(a, "u1")
		<-started
		n, err := a.MarkAllOptimistic(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		close(release)

		assert.Zero(t, (<-result).UnreadCount)
		cached, _ := a.Snapshot("u1")
		assert.Zero(t, cached.UnreadCount)
	})

	t.Run("server state wins once it reports read", func(t *testing.T) {
		serverRead := fixture()
		for i := range serverRead {
			serverRead[i].MarkAsRead(base.Add(time.Hour))
		}
		b := &MockBackend{}
		b.On("ListForUser", anyCtx, "u1").Return(serverRead, nil).Once()
		b.On("ListForUser", anyCtx, "u1").Return(fixture(), nil).Once()
		b.On("MarkRead", anyCtx, "n2", "u1").Return(notifications.Notification{}, errNet)
		a := newAdapter(b)

		assert.Error(t, a.MarkOneOptimistic(context.Background(), "u1", "n2"))
		snap, err := a.FetchAll(context.Background(), "u1")
		require.NoError(t, err)
		assert.Zero(t, snap.UnreadCount)
		assert.NoError(t, a.LastError("u1"))

		snap, err = a.FetchAll(context.Background(), "u1")
		require.NoError(t, err)
		assert.Zero(t, snap.UnreadCount, "read is never undone by a later fetch")
	})
}

func TestAdapter_MarkAllOptimistic(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		b := &MockBackend{}
		b.On("ListForUser", anyCtx, "u1").Return(fixture(), nil).Once()
		b.On("MarkAllRead", anyCtx, "u1").Return(3, nil).Once()
		a := newAdapter(b)

		_, err := a.FetchAll(context.Background(), "u1")
		require.NoError(t, err)

		n, err := a.MarkAllOptimistic(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		snap, _ := a.Snapshot("u1")
		assert.Zero(t, snap.UnreadCount)
		for _, item := range snap.Items {
			assert.True(t, item.IsRead)
			assert.NotNil(t, item.ReadAt)
		}
	})

	t.Run("failure keeps the local flip", func(t *testing.T) {
		b := &MockBackend{}
		b.On("ListForUser", anyCtx, "u1").Return(fixture(), nil).Once()
		b.On("MarkAllRead", anyCtx, "u1").Return(0, errNet)
		a := newAdapter(b)

		_, err := a.FetchAll(context.Background(), "u1")
		require.NoError(t, err)

		n, err := a.MarkAllOptimistic(context.Background(), "u1")
		assert.ErrorIs(t, err, notifyclient.ErrTransport)
		assert.Zero(t, n)

		snap, _ := a.Snapshot("u1")
		assert.Zero(t, snap.UnreadCount)
		assert.Error(t, a.LastError("u1"))
	})
}

func TestAdapter_Forget(t *testing.T) {
	b := &MockBackend{}
	b.On("ListForUser", anyCtx, "u1").Return(fixture(), nil).Once()
	a := newAdapter(b)

	_, err := a.FetchAll(context.Background(), "u1")
	require.NoError(t, err)
	a.Forget("u1")

	_, ok := a.Snapshot("u1")
	assert.False(t, ok)
	assert.NoError(t, a.LastError("u1"))
}

// The adapter works directly on the in-process service.
func TestAdapter_WithService(t *testing.T) {
	svc := notifications.NewService(notifications.NewMemoryStorage(), notifications.WithLogger(logger.Discard()))
	ctx := context.Background()

	var created []notifications.Notification
	for _, typ := range []notifications.Type{notifications.TypeBooking, notifications.TypePayment, notifications.TypeReminder} {
		n, err := svc.Create(ctx, "u1", typ, string(typ))
		require.NoError(t, err)
		created = append(created, n)
	}

	a := notifyclient.NewAdapter(svc, notifyclient.WithLogger(logger.Discard()))
	snap, err := a.FetchAll(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, snap.UnreadCount)
	assert.Equal(t, created[2].ID, snap.Items[0].ID)

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, a.MarkOneOptimistic(ctx, "u1", created[0].ID))
		}()
	}
	wg.Wait()

	snap, err = a.FetchAll(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.UnreadCount)

	n, err := a.MarkAllOptimistic(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = a.MarkAllOptimistic(ctx, "empty")
	require.NoError(t, err)
	assert.Zero(t, n)
}
