package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kailas-cloud/scopedex/internal/db"
)

// SQLSTATE codes mapped onto db sentinels.
const (
	codeUniqueViolation           = "23505"
	codeForeignKeyViolation       = "23503"
	codeNotNullViolation          = "23502"
	codeCheckViolation            = "23514"
	codeStringDataRightTruncation = "22001"
	codeInvalidTextRepresentation = "22P02"
)

// classify attaches a db sentinel to constraint errors. Other errors pass through.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	var sentinel error
	switch pgErr.Code {
	case codeUniqueViolation:
		sentinel = db.ErrUniqueViolation
	case codeForeignKeyViolation:
		sentinel = db.ErrForeignKeyViolation
	case codeNotNullViolation, codeCheckViolation,
		codeStringDataRightTruncation, codeInvalidTextRepresentation:
		sentinel = db.ErrConstraintViolation
	default:
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
