// Package pgstore persists notifications in PostgreSQL through pgx/v5.
//
// Read state changes are single conditional UPDATE statements, so concurrent
// marks never move read_at once it is set and bulk updates report only the
// rows they transitioned.
package pgstore

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/pg"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store implements notifications.Storage on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ notifications.Storage = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates or upgrades the notifications schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg pg.Config, log *slog.Logger) error {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	return pg.Migrate(ctx, pool, sub, cfg, log)
}

const selectColumns = `SELECT id, user_id, type, message, created_at, is_read, read_at FROM notifications`

func scan(row pgx.Row) (notifications.Notification, error) {
	var (
		n   notifications.Notification
		typ string
	)
	if err := row.Scan(&n.ID, &n.UserID, &typ, &n.Message, &n.CreatedAt, &n.IsRead, &n.ReadAt); err != nil {
		return notifications.Notification{}, err
	}
	n.Type = notifications.Type(typ)
	n.CreatedAt = n.CreatedAt.UTC()
	if n.ReadAt != nil {
		t := n.ReadAt.UTC()
		n.ReadAt = &t
	}
	return n, nil
}

func (s *Store) Put(ctx context.Context, n notifications.Notification) error {
	if n.UserID == "" {
		return notifications.ErrInvalidUserID
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, message, created_at, is_read, read_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.UserID, string(n.Type), n.Message, n.CreatedAt, n.IsRead, n.ReadAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return notifications.ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("inserting notification %s: %w", n.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (notifications.Notification, error) {
	n, err := scan(s.pool.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if pg.IsNotFoundError(err) {
		return notifications.Notification{}, notifications.ErrNotFound
	}
	if err != nil {
		return notifications.Notification{}, fmt.Errorf("getting notification %s: %w", id, err)
	}
	return n, nil
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]notifications.Notification, error) {
	rows, err := s.pool.Query(ctx, selectColumns+` WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing notifications for %s: %w", userID, err)
	}
	list, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (notifications.Notification, error) {
		return scan(r)
	})
	if err != nil {
		return nil, fmt.Errorf("scanning notifications for %s: %w", userID, err)
	}
	if list == nil {
		list = []notifications.Notification{}
	}
	return list, nil
}

// UpdateReadState flips an unread row in one statement and falls back to
// reading the row when it was already read or does not exist.
func (s *Store) UpdateReadState(ctx context.Context, id string, readAt time.Time) (notifications.Notification, bool, error) {
	n, err := scan(s.pool.QueryRow(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = $2
		WHERE id = $1 AND NOT is_read
		RETURNING id, user_id, type, message, created_at, is_read, read_at`,
		id, readAt,
	))
	if err == nil {
		return n, true, nil
	}
	if !pg.IsNotFoundError(err) {
		return notifications.Notification{}, false, fmt.Errorf("marking notification %s read: %w", id, err)
	}
	n, err = s.Get(ctx, id)
	return n, false, err
}

func (s *Store) UpdateAllReadForUser(ctx context.Context, userID string, readAt time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE, read_at = $2 WHERE user_id = $1 AND NOT is_read`,
		userID, readAt,
	)
	if err != nil {
		return 0, fmt.Errorf("marking notifications of %s read: %w", userID, err)
	}
	return int(tag.RowsAffected()), nil
}

// Ping backs the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return pg.Ping(ctx, s.pool)
}
