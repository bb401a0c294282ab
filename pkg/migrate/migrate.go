// Package migrate applies goose migrations shipped in an fs.FS.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/pressly/goose/v3"
)

var ErrFailedToApplyMigrations = errors.New("failed to apply migrations")

// goose keeps dialect, base FS and table name in package globals.
var mu sync.Mutex

// Up applies every pending migration found at the root of fsys.
// dialect is a goose dialect name such as "postgres" or "sqlite3".
func Up(ctx context.Context, db *sql.DB, dialect string, fsys fs.FS, table string, log *slog.Logger) error {
	if fsys == nil {
		return errors.Join(ErrFailedToApplyMigrations, errors.New("migrations filesystem not provided"))
	}
	if log == nil {
		log = slog.Default()
	}

	mu.Lock()
	defer mu.Unlock()

	goose.SetLogger(&gooseLogger{log: log})
	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	if table != "" {
		goose.SetTableName(table)
	}

	if err := goose.SetDialect(dialect); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	return nil
}

// gooseLogger routes goose output through slog.
type gooseLogger struct {
	log *slog.Logger
}

func (a *gooseLogger) Fatalf(format string, v ...any) {
	a.log.Error(fmt.Sprintf(format, v...), slog.String("component", "goose"))
}

func (a *gooseLogger) Printf(format string, v ...any) {
	a.log.Info(fmt.Sprintf(format, v...), slog.String("component", "goose"))
}
