package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("repository: record not found")
	// ErrVersionConflict is returned when an optimistic version check fails.
	ErrVersionConflict = errors.New("repository: version conflict")
	// ErrBreachExists is returned when a breach of the same type already exists
	// for a metric.
	ErrBreachExists = errors.New("repository: breach already recorded")
	// ErrDuplicate is returned when a unique attribute is already taken.
	ErrDuplicate = errors.New("repository: duplicate record")
)

const uniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func clampPage(limit, offset, defaultLimit int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
