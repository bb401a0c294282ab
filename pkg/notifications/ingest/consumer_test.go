package ingest_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/notifications/ingest"
)

// fakeReader serves queued messages and blocks once they run out.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	fetchErrs []error
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type MockCreator struct {
	mock.Mock
}

func (m *MockCreator) NewID() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *MockCreator) CreateWithID(ctx context.Context, id, userID string, typ notifications.Type, message string) (notifications.Notification, error) {
	args := m.Called(ctx, id, userID, typ, message)
	return args.Get(0).(notifications.Notification), args.Error(1)
}

// flakyStorage stores the record but reports failure on the first n writes.
type flakyStorage struct {
	*notifications.MemoryStorage
	mu    sync.Mutex
	fails int
}

func (s *flakyStorage) Put(ctx context.Context, n notifications.Notification) error {
	if err := s.MemoryStorage.Put(ctx, n); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails > 0 {
		s.fails--
		return errors.New("connection reset after write")
	}
	return nil
}

func msg(offset int64, value string) kafka.Message {
	return kafka.Message{Topic: "notifications", Offset: offset, Value: []byte(value)}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		wantErr error
	}{
		{"valid", `{"user_id":"u1","type":"booking","message":"Booking confirmed"}`, nil},
		{"not json", `{`, ingest.ErrInvalidPayload},
		{"missing user", `{"type":"booking","message":"x"}`, notifications.ErrInvalidUserID},
		{"unknown type", `{"user_id":"u1","type":"party","message":"x"}`, notifications.ErrInvalidType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev, typ, err := ingest.Decode([]byte(tt.value))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ingest.ErrInvalidPayload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u1", ev.UserID)
			assert.Equal(t, notifications.TypeBooking, typ)
			assert.Equal(t, "Booking confirmed", ev.Message)
		})
	}
}

func TestConsumer_Run(t *testing.T) {
	t.Parallel()

	svc := notifications.NewService(notifications.NewMemoryStorage(), notifications.WithLogger(logger.Discard()))
	reader := &fakeReader{
		fetchErrs: []error{errors.New("broker unavailable")},
		queue: []kafka.Message{
			msg(1, `{"user_id":"u1","type":"booking","message":"Booking confirmed"}`),
			msg(2, `not json`),
			msg(3, `{"user_id":"u1","type":"payment","message":"Payment received"}`),
		},
	}
	c := ingest.NewConsumer(reader, svc,
		ingest.WithLogger(logger.Discard()),
		ingest.WithFetchBackoff(time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return len(reader.commits()) == 3 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 2, 3}, reader.commits())
	assert.True(t, reader.closed)

	list, err := svc.ListForUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Payment received", list[0].Message)
}

func TestConsumer_Handle(t *testing.T) {
	t.Parallel()

	t.Run("retries transient failures", func(t *testing.T) {
		t.Parallel()
		creator := &MockCreator{}
		creator.On("NewID").Return("n1", nil).Once()
		creator.On("CreateWithID", mock.Anything, "n1", "u1", notifications.TypeReminder, "soon").
			Return(notifications.Notification{}, errors.New("db down")).Twice()
		creator.On("CreateWithID", mock.Anything, "n1", "u1", notifications.TypeReminder, "soon").
			Return(notifications.Notification{ID: "n1", UserID: "u1"}, nil).Once()

		c := ingest.NewConsumer(&fakeReader{}, creator,
			ingest.WithLogger(logger.Discard()),
			ingest.WithRetry(3, time.Millisecond),
		)
		err := c.Handle(context.Background(), msg(7, `{"user_id":"u1","type":"reminder","message":"soon"}`))
		require.NoError(t, err)
		creator.AssertNumberOfCalls(t, "CreateWithID", 3)
		creator.AssertNumberOfCalls(t, "NewID", 1)
	})

	t.Run("retry after a landed write stores once", func(t *testing.T) {
		t.Parallel()
		storage := &flakyStorage{MemoryStorage: notifications.NewMemoryStorage(), fails: 1}
		svc := notifications.NewService(storage, notifications.WithLogger(logger.Discard()))

		c := ingest.NewConsumer(&fakeReader{}, svc,
			ingest.WithLogger(logger.Discard()),
			ingest.WithRetry(3, time.Millisecond),
		)
		err := c.Handle(context.Background(), msg(11, `{"user_id":"u1","type":"payment","message":"Payment received"}`))
		require.NoError(t, err)

		list, err := svc.ListForUser(context.Background(), "u1")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Payment received", list[0].Message)
	})

	t.Run("id reservation failure skips create", func(t *testing.T) {
		t.Parallel()
		errEntropy := errors.New("entropy exhausted")
		creator := &MockCreator{}
		creator.On("NewID").Return("", errEntropy)

		c := ingest.NewConsumer(&fakeReader{}, creator, ingest.WithLogger(logger.Discard()))
		err := c.Handle(context.Background(), msg(12, `{"user_id":"u1","type":"info","message":"x"}`))
		assert.ErrorIs(t, err, errEntropy)
		creator.AssertNotCalled(t, "CreateWithID", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("gives up after retries", func(t *testing.T) {
		t.Parallel()
		errDB := errors.New("db down")
		creator := &MockCreator{}
		creator.On("NewID").Return("n2", nil)
		creator.On("CreateWithID", mock.Anything, "n2", mock.Anything, mock.Anything, mock.Anything).
			Return(notifications.Notification{}, errDB)

		c := ingest.NewConsumer(&fakeReader{}, creator,
			ingest.WithLogger(logger.Discard()),
			ingest.WithRetry(1, time.Millisecond),
		)
		err := c.Handle(context.Background(), msg(8, `{"user_id":"u1","type":"info","message":"x"}`))
		assert.ErrorIs(t, err, errDB)
		creator.AssertNumberOfCalls(t, "CreateWithID", 2)
	})

	t.Run("domain errors are not retried", func(t *testing.T) {
		t.Parallel()
		creator := &MockCreator{}
		creator.On("NewID").Return("n3", nil)
		creator.On("CreateWithID", mock.Anything, "n3", mock.Anything, mock.Anything, mock.Anything).
			Return(notifications.Notification{}, notifications.ErrDuplicateID)

		c := ingest.NewConsumer(&fakeReader{}, creator,
			ingest.WithLogger(logger.Discard()),
			ingest.WithRetry(5, time.Millisecond),
		)
		err := c.Handle(context.Background(), msg(9, `{"user_id":"u1","type":"info","message":"x"}`))
		assert.ErrorIs(t, err, notifications.ErrDuplicateID)
		creator.AssertNumberOfCalls(t, "CreateWithID", 1)
	})

	t.Run("invalid payload skips create", func(t *testing.T) {
		t.Parallel()
		creator := &MockCreator{}
		c := ingest.NewConsumer(&fakeReader{}, creator, ingest.WithLogger(logger.Discard()))
		err := c.Handle(context.Background(), msg(10, `{"user_id":"u1","type":"nope"}`))
		assert.ErrorIs(t, err, notifications.ErrInvalidType)
		creator.AssertNotCalled(t, "NewID")
		creator.AssertNotCalled(t, "CreateWithID", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestNewReader(t *testing.T) {
	t.Parallel()

	_, err := ingest.NewReader(ingest.Config{})
	assert.ErrorIs(t, err, ingest.ErrNoBrokers)

	r, err := ingest.NewReader(ingest.Config{Brokers: []string{"localhost:9092"}, Topic: "notifications", GroupID: "g", MinBytes: 1, MaxBytes: 1e6})
	require.NoError(t, err)
	assert.Equal(t, "notifications", r.Config().Topic)
	require.NoError(t, r.Close())
}
