package pg

import (
	"context"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrymomot/notifykit/pkg/migrate"
)

// Migrate applies goose migrations from fsys over a database/sql view of pool.
// Callers usually pass an embed.FS rooted at their migrations directory.
func Migrate(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, cfg Config, log *slog.Logger) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	return migrate.Up(ctx, db, "postgres", fsys, cfg.MigrationsTable, log)
}
