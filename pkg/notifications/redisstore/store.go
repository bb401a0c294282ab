// Package redisstore keeps notifications in Redis.
//
// Each notification is a hash under "<prefix>:n:<id>" and every user owns a
// set of ids under "<prefix>:u:<user>". Writes that must be atomic run as
// Lua scripts. Keys of one operation may live in different hash slots, so
// the store targets a standalone server or a single shard.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

const DefaultPrefix = "notifykit"

// putScript inserts the record unless the id is taken.
// KEYS[1] record, KEYS[2] user set. ARGV: id, user, type, message, created_at, is_read, read_at.
var putScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1],
  'id', ARGV[1], 'user_id', ARGV[2], 'type', ARGV[3], 'message', ARGV[4],
  'created_at', ARGV[5], 'is_read', ARGV[6], 'read_at', ARGV[7])
redis.call('SADD', KEYS[2], ARGV[1])
return 1
`)

// markScript returns -1 for a missing record, 1 when it transitioned, 0 when already read.
var markScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
if redis.call('HGET', KEYS[1], 'is_read') == '1' then
  return 0
end
redis.call('HSET', KEYS[1], 'is_read', '1', 'read_at', ARGV[1])
return 1
`)

// markAllScript transitions every unread record in the user set.
// ARGV[1] read_at, ARGV[2] record key prefix.
var markAllScript = redis.NewScript(`
local changed = 0
for _, id in ipairs(redis.call('SMEMBERS', KEYS[1])) do
  local key = ARGV[2] .. id
  if redis.call('HGET', key, 'is_read') == '0' then
    redis.call('HSET', key, 'is_read', '1', 'read_at', ARGV[1])
    changed = changed + 1
  end
end
return changed
`)

// Store implements notifications.Storage on go-redis.
type Store struct {
	client redis.UniversalClient
	prefix string
}

var _ notifications.Storage = (*Store)(nil)

type Option func(*Store)

// WithPrefix namespaces every key. Tests use it to isolate runs.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) recordPrefix() string { return s.prefix + ":n:" }

func (s *Store) recordKey(id string) string { return s.recordPrefix() + id }

func (s *Store) userKey(userID string) string { return s.prefix + ":u:" + userID }

func (s *Store) Put(ctx context.Context, n notifications.Notification) error {
	if n.UserID == "" {
		return notifications.ErrInvalidUserID
	}

	isRead, readAt := "0", ""
	if n.IsRead {
		isRead = "1"
	}
	if n.ReadAt != nil {
		readAt = strconv.FormatInt(n.ReadAt.UnixMilli(), 10)
	}

	inserted, err := putScript.Run(ctx, s.client,
		[]string{s.recordKey(n.ID), s.userKey(n.UserID)},
		n.ID, n.UserID, string(n.Type), n.Message, n.CreatedAt.UnixMilli(), isRead, readAt,
	).Int()
	if err != nil {
		return fmt.Errorf("inserting notification %s: %w", n.ID, err)
	}
	if inserted == 0 {
		return notifications.ErrDuplicateID
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (notifications.Notification, error) {
	fields, err := s.client.HGetAll(ctx, s.recordKey(id)).Result()
	if err != nil {
		return notifications.Notification{}, fmt.Errorf("getting notification %s: %w", id, err)
	}
	if len(fields) == 0 {
		return notifications.Notification{}, notifications.ErrNotFound
	}
	return decode(fields)
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]notifications.Notification, error) {
	ids, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing notification ids for %s: %w", userID, err)
	}

	list := make([]notifications.Notification, 0, len(ids))
	if len(ids) == 0 {
		return list, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, s.recordKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading notifications for %s: %w", userID, err)
	}

	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		n, err := decode(fields)
		if err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, nil
}

func (s *Store) UpdateReadState(ctx context.Context, id string, readAt time.Time) (notifications.Notification, bool, error) {
	res, err := markScript.Run(ctx, s.client, []string{s.recordKey(id)}, readAt.UnixMilli()).Int()
	if err != nil {
		return notifications.Notification{}, false, fmt.Errorf("marking notification %s read: %w", id, err)
	}
	if res < 0 {
		return notifications.Notification{}, false, notifications.ErrNotFound
	}
	n, err := s.Get(ctx, id)
	return n, res == 1, err
}

func (s *Store) UpdateAllReadForUser(ctx context.Context, userID string, readAt time.Time) (int, error) {
	changed, err := markAllScript.Run(ctx, s.client,
		[]string{s.userKey(userID)},
		readAt.UnixMilli(), s.recordPrefix(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("marking notifications of %s read: %w", userID, err)
	}
	return changed, nil
}

// Ping backs the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var errCorruptRecord = errors.New("corrupt notification record")

func decode(fields map[string]string) (notifications.Notification, error) {
	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return notifications.Notification{}, fmt.Errorf("%w %s: created_at: %w", errCorruptRecord, fields["id"], err)
	}

	n := notifications.Notification{
		ID:        fields["id"],
		UserID:    fields["user_id"],
		Type:      notifications.Type(fields["type"]),
		Message:   fields["message"],
		CreatedAt: time.UnixMilli(createdAt).UTC(),
		IsRead:    fields["is_read"] == "1",
	}
	if raw := fields["read_at"]; raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return notifications.Notification{}, fmt.Errorf("%w %s: read_at: %w", errCorruptRecord, n.ID, err)
		}
		t := time.UnixMilli(ms).UTC()
		n.ReadAt = &t
	}
	return n, nil
}
