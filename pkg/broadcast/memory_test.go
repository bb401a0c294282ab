package broadcast_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/broadcast"
)

func TestHub_FanOut(t *testing.T) {
	h := broadcast.NewHub[string](4)
	defer h.Close()

	ctx := context.Background()
	s1 := h.Subscribe(ctx)
	s2 := h.Subscribe(ctx)
	assert.Equal(t, 2, h.Len())

	assert.Equal(t, 2, h.Publish("hello"))
	assert.Equal(t, "hello", <-s1.C())
	assert.Equal(t, "hello", <-s2.C())
}

func TestHub_ContextCancelUnsubscribes(t *testing.T) {
	h := broadcast.NewHub[int](1)
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub := h.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-sub.C():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not ended after cancel")
	}
	assert.NoError(t, sub.Err())
	assert.Equal(t, 0, h.Len())
}

func TestHub_EndsSlowSubscriber(t *testing.T) {
	h := broadcast.NewHub[int](1)
	defer h.Close()

	sub := h.Subscribe(context.Background())
	assert.Equal(t, 1, h.Publish(1))
	assert.Equal(t, 0, h.Publish(2))
	assert.Equal(t, 0, h.Len())

	assert.Equal(t, 1, <-sub.C(), "buffered values are still readable")
	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.ErrorIs(t, sub.Err(), broadcast.ErrSlowSubscriber)
}

func TestHub_Close(t *testing.T) {
	h := broadcast.NewHub[int](1)
	live := h.Subscribe(context.Background())
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	_, ok := <-live.C()
	assert.False(t, ok)
	assert.ErrorIs(t, live.Err(), broadcast.ErrClosed)

	late := h.Subscribe(context.Background())
	_, ok = <-late.C()
	assert.False(t, ok)
	assert.ErrorIs(t, late.Err(), broadcast.ErrClosed)
	assert.Equal(t, 0, h.Publish(1))
}

func TestSubscription_CloseByOwner(t *testing.T) {
	h := broadcast.NewHub[int](1)
	defer h.Close()

	sub := h.Subscribe(context.Background())
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	assert.NoError(t, sub.Err())
	assert.Equal(t, 0, h.Publish(1))
}

func TestKeyed_IsolatesKeysAndEvicts(t *testing.T) {
	k := broadcast.NewKeyed[string, int](2, 4)
	defer k.Close()

	ctx := context.Background()
	a := k.Subscribe(ctx, "a")
	b := k.Subscribe(ctx, "b")

	assert.Equal(t, 1, k.Publish("a", 1))
	assert.Equal(t, 1, <-a.C())

	select {
	case <-b.C():
		t.Fatal("b must not receive values published to a")
	default:
	}

	// "b" is now the least recently used key
	_ = k.Subscribe(ctx, "c")
	_, ok := <-b.C()
	assert.False(t, ok)
	assert.ErrorIs(t, b.Err(), broadcast.ErrClosed)
	assert.Equal(t, 2, k.Len())
}

func TestKeyed_PublishWithoutSubscribers(t *testing.T) {
	k := broadcast.NewKeyed[string, int](2, 4)
	defer k.Close()

	assert.Equal(t, 0, k.Publish("nobody", 1))
	assert.Equal(t, 0, k.Len())
}
