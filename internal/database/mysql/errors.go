package mysql

import (
	"context"
	"errors"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/fieldsync/fieldsync/internal/errs"
)

// MySQL error numbers the driver branches on.
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errDuplicateEntry  = 1062
	errDuplicateColumn = 1060
	errBadFieldError   = 1054
	errParseError      = 1064
	errNoSuchTable     = 1146
	errAccessDenied    = 1045
	errConnRefused     = 2003
	errUnknownDatabase = 1049
	errIncorrectValue  = 1366
	errTruncatedValue  = 1292
	errDataTooLong     = 1406
)

// mapError converts a MySQL driver error into *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case errAccessDenied, errConnRefused, errUnknownDatabase:
			return errs.Wrap(errs.ErrKindConnectionFailed,
				fmt.Sprintf("%s: %s", msg, mysqlErr.Message), err)
		case errIncorrectValue, errTruncatedValue, errDataTooLong:
			return errs.Wrap(errs.ErrKindSchemaConflict,
				fmt.Sprintf("%s: %s", msg, mysqlErr.Message), err)
		case errBadFieldError, errParseError, errNoSuchTable:
			return errs.Wrap(errs.ErrKindQueryFailed,
				fmt.Sprintf("%s: %s", msg, mysqlErr.Message), err)
		}
		return errs.Wrap(errs.ErrKindQueryFailed,
			fmt.Sprintf("%s: %s", msg, mysqlErr.Message), err)
	}

	// Fallthrough: network-level errors from the driver
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// mapApplyError classifies a failure inside the batch apply. Value
// incompatibilities surface as schema conflicts; everything else means the
// row transaction rolled back with nothing applied.
func mapApplyError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case errIncorrectValue, errTruncatedValue, errDataTooLong:
			return errs.Wrap(errs.ErrKindSchemaConflict,
				fmt.Sprintf("%s: %s", msg, mysqlErr.Message), err)
		}
	}
	return errs.Wrap(errs.ErrKindTxFailed, msg, err)
}

// mysqlErrNumber extracts the server error number, or 0.
func mysqlErrNumber(err error) uint16 {
	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number
	}
	return 0
}
