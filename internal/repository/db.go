package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the slice of pgxpool.Pool the repositories use. pgxmock pools satisfy
// it as well.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type scanner interface {
	Scan(dest ...any) error
}

var (
	ErrUserNotFound           = errors.New("user not found")
	ErrRecoveryTokenNotFound  = errors.New("invalid or expired token")
	ErrCharacterNotFound      = errors.New("character not found")
	ErrCharacterStateNotFound = errors.New("character state not found")
	ErrSessionNotFound        = errors.New("session not found")
	ErrSessionConflict        = errors.New("session was modified concurrently")
	ErrDuplicate              = errors.New("duplicate key")
)

// uniqueViolation is the postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
