package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fieldsync/fieldsync/internal/errs"
)

// PostgreSQL SQLSTATE codes the drivers branch on.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrDuplicateColumn = "42701"
	pgErrDatatypeMism    = "42804"
	pgErrUndefinedTable  = "42P01"
	pgErrUndefinedColumn = "42703"
	pgErrSyntaxError     = "42601"

	pgClassConnection = "08" // connection exceptions
	pgClassData       = "22" // data exceptions (bad cast, out of range, …)
)

// mapError translates pgx / pgconn native errors into *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		kind := errs.ErrKindQueryFailed
		switch {
		case strings.HasPrefix(pgErr.Code, pgClassConnection):
			kind = errs.ErrKindConnectionFailed
		case strings.HasPrefix(pgErr.Code, pgClassData), pgErr.Code == pgErrDatatypeMism:
			kind = errs.ErrKindSchemaConflict
		}
		return errs.Wrap(kind, fmt.Sprintf("%s: %s", msg, pgErr.Message), err)
	}

	// Fallthrough: connection-level errors (TLS, network, auth)
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// mapApplyError classifies a failure inside the batch transaction. Value or
// type incompatibilities surface as schema conflicts; everything else means
// the transaction rolled back with nothing applied.
func mapApplyError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, pgClassData) || pgErr.Code == pgErrDatatypeMism {
			return errs.Wrap(errs.ErrKindSchemaConflict,
				fmt.Sprintf("%s: %s", msg, pgErr.Message), err)
		}
	}
	return errs.Wrap(errs.ErrKindTxFailed, msg, err)
}
