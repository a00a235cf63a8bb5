package db

import (
	"context"
	"errors"
)

// Sentinel errors raised by the SQL store. Driver-specific codes are mapped onto these.
var (
	ErrNoRows              = errors.New("db: no rows")
	ErrUniqueViolation     = errors.New("db: unique violation")
	ErrForeignKeyViolation = errors.New("db: foreign key violation")
	ErrConstraintViolation = errors.New("db: constraint violation")
)

// Row exposes the minimal scan contract a single row needs.
type Row interface {
	Scan(dest ...any) error
}

// Rows iterates a result set as generic column values.
type Rows interface {
	Next() bool
	Values() ([]any, error)
	Columns() []string
	Err() error
	Close()
}

// Querier is the read and write surface repositories use for SQL.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// SQLStore is the system-of-record facade.
type SQLStore interface {
	Pinger
	Querier
	Tx(ctx context.Context, fn func(q Querier) error) error
	Close()
}
