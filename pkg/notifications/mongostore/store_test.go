package mongostore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/mongo"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/notifications/mongostore"
	"github.com/dmitrymomot/notifykit/pkg/notifications/storetest"
)

func TestStore(t *testing.T) {
	url := os.Getenv("NOTIFY_TEST_MONGO_URL")
	if url == "" {
		t.Skip("NOTIFY_TEST_MONGO_URL not set")
	}

	ctx := context.Background()
	db, err := mongo.NewWithDatabase(ctx, mongo.Config{
		ConnectionURL:  url,
		Database:       "notifykit_test",
		ConnectTimeout: 5 * time.Second,
		MaxPoolSize:    16,
		RetryWrites:    true,
		RetryReads:     true,
		RetryAttempts:  1,
		RetryInterval:  100 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = db.Client().Disconnect(context.Background())
	})

	storetest.Run(t, func(t *testing.T) notifications.Storage {
		s, err := mongostore.New(ctx, db, "notifications_"+uuid.NewString())
		require.NoError(t, err)
		require.NoError(t, s.Ping(ctx))
		return s
	})
}
