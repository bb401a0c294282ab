package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrParseConfig = errors.New("pg: invalid connection string")
	ErrConnect     = errors.New("pg: could not connect")
	ErrNotReady    = errors.New("pg: ping failed")
)

const uniqueViolation = "23505"

func IsNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func IsDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
