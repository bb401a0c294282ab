// Package sqlitestore persists notifications in an embedded SQLite database
// through sqlx and the pure Go modernc.org/sqlite driver.
package sqlitestore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/dmitrymomot/notifykit/pkg/migrate"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store implements notifications.Storage on SQLite.
type Store struct {
	db *sqlx.DB
}

var _ notifications.Storage = (*Store)(nil)

// Open opens the database at cfg.Path, enables WAL and applies migrations.
// The pool is limited to a single connection, which serialises writers and
// makes each conditional update atomic.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	db, err := sqlx.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout.Milliseconds()),
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("applying %q: %w", p, err)
		}
	}

	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrate.Up(ctx, db.DB, "sqlite3", sub, cfg.MigrationsTable, log); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping backs the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type row struct {
	ID        string        `db:"id"`
	UserID    string        `db:"user_id"`
	Type      string        `db:"type"`
	Message   string        `db:"message"`
	CreatedAt int64         `db:"created_at"`
	IsRead    bool          `db:"is_read"`
	ReadAt    sql.NullInt64 `db:"read_at"`
}

func (r row) notification() notifications.Notification {
	n := notifications.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Type:      notifications.Type(r.Type),
		Message:   r.Message,
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
		IsRead:    r.IsRead,
	}
	if r.ReadAt.Valid {
		t := time.UnixMilli(r.ReadAt.Int64).UTC()
		n.ReadAt = &t
	}
	return n
}

const selectColumns = `SELECT id, user_id, type, message, created_at, is_read, read_at FROM notifications`

func (s *Store) Put(ctx context.Context, n notifications.Notification) error {
	if n.UserID == "" {
		return notifications.ErrInvalidUserID
	}

	var readAt sql.NullInt64
	if n.ReadAt != nil {
		readAt = sql.NullInt64{Int64: n.ReadAt.UnixMilli(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, message, created_at, is_read, read_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, string(n.Type), n.Message, n.CreatedAt.UnixMilli(), n.IsRead, readAt,
	)
	if isPrimaryKeyViolation(err) {
		return notifications.ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("inserting notification %s: %w", n.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (notifications.Notification, error) {
	var r row
	err := s.db.GetContext(ctx, &r, selectColumns+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return notifications.Notification{}, notifications.ErrNotFound
	}
	if err != nil {
		return notifications.Notification{}, fmt.Errorf("getting notification %s: %w", id, err)
	}
	return r.notification(), nil
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]notifications.Notification, error) {
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, selectColumns+` WHERE user_id = ?`, userID); err != nil {
		return nil, fmt.Errorf("listing notifications for %s: %w", userID, err)
	}

	list := make([]notifications.Notification, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.notification())
	}
	return list, nil
}

// UpdateReadState only touches unread rows, so read_at keeps its first value.
func (s *Store) UpdateReadState(ctx context.Context, id string, readAt time.Time) (notifications.Notification, bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1, read_at = ? WHERE id = ? AND is_read = 0`,
		readAt.UnixMilli(), id,
	)
	if err != nil {
		return notifications.Notification{}, false, fmt.Errorf("marking notification %s read: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return notifications.Notification{}, false, fmt.Errorf("counting updated notifications: %w", err)
	}
	n, err := s.Get(ctx, id)
	return n, affected == 1, err
}

func (s *Store) UpdateAllReadForUser(ctx context.Context, userID string, readAt time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1, read_at = ? WHERE user_id = ? AND is_read = 0`,
		readAt.UnixMilli(), userID,
	)
	if err != nil {
		return 0, fmt.Errorf("marking notifications of %s read: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting updated notifications: %w", err)
	}
	return int(n), nil
}

func isPrimaryKeyViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
