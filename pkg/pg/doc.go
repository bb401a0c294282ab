// Package pg connects notifykit to PostgreSQL through pgx/v5.
//
// Connect builds a *pgxpool.Pool from Config and retries the first ping with
// exponential backoff. Migrate runs goose migrations from an fs.FS, so store
// packages ship their schema embedded in the binary. Ping backs readiness
// checks, and the error helpers translate pgx failures for the stores.
package pg
