package sqlitestore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/notifications/sqlitestore"
	"github.com/dmitrymomot/notifykit/pkg/notifications/storetest"
)

func openStore(t *testing.T, path string) *sqlitestore.Store {
	t.Helper()
	s, err := sqlitestore.Open(context.Background(), sqlitestore.Config{
		Path:        path,
		BusyTimeout: time.Second,
	}, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) notifications.Storage {
		return openStore(t, filepath.Join(t.TempDir(), "notifications.db"))
	})
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifications.db")
	ctx := context.Background()

	first, err := sqlitestore.Open(ctx, sqlitestore.Config{Path: path}, logger.Discard())
	require.NoError(t, err)
	n := storetest.Record("user-1", notifications.TypePayment, 1500*time.Millisecond)
	require.NoError(t, first.Put(ctx, n))
	require.NoError(t, first.Close())

	second := openStore(t, path)
	require.NoError(t, second.Ping(ctx))
	got, err := second.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, n.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, time.UTC, got.CreatedAt.Location())
}

func TestStore_PutRequiresUser(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "notifications.db"))
	n := storetest.Record("", notifications.TypeInfo, 0)
	assert.ErrorIs(t, s.Put(context.Background(), n), notifications.ErrInvalidUserID)
}

func TestStore_WithService(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "notifications.db"))
	svc := notifications.NewService(s)
	ctx := context.Background()

	created, err := svc.Create(ctx, "u1", notifications.TypeBooking, "Booking confirmed")
	require.NoError(t, err)

	read, err := svc.MarkRead(ctx, created.ID, "u1")
	require.NoError(t, err)
	assert.True(t, read.IsRead)

	_, err = svc.MarkRead(ctx, created.ID, "u2")
	assert.ErrorIs(t, err, notifications.ErrForbidden)

	count, err := svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
}
