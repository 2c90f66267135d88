// Package mysql implements database.DB on top of database/sql and
// go-sql-driver/mysql.
//
// Caveat on atomicity: MySQL DDL statements commit implicitly, so the
// ADD COLUMN portion of a change set can survive a failed batch. Column
// additions are harmless on their own (nullable TEXT, no data), and the
// row portion of the batch remains all-or-nothing inside its transaction.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldsync/fieldsync/internal/database"
	"github.com/fieldsync/fieldsync/internal/errs"

	_ "github.com/go-sql-driver/mysql" // register "mysql" driver
)

// Driver is a MySQL implementation of database.DB backed by database/sql.
type Driver struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// New opens a MySQL connection pool using the provided Config and returns a
// Driver. It calls Ping to validate the connection before returning.
//
// The DSN must enable ANSI_QUOTES so double-quoted identifiers work, e.g.
// "user:pass@tcp(localhost:3306)/warehouse?sql_mode=ANSI_QUOTES".
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}

	db.SetMaxOpenConns(int(cfg.MaxConns))
	db.SetMaxIdleConns(int(cfg.MinConns))
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	d := &Driver{db: db, queryTimeout: cfg.QueryTimeout}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := d.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return d, nil
}

// --- database.DB implementation ---

func (d *Driver) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

func (d *Driver) Close() {
	_ = d.db.Close()
}

// queryCtx applies the configured per-statement deadline, if any.
func (d *Driver) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.queryTimeout)
}

// TableExists reports whether a table with the given name exists in the
// current database.
func (d *Driver) TableExists(ctx context.Context, table string) (bool, error) {
	const q = `
		SELECT 1
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_type   = 'BASE TABLE'
		  AND table_name   = ?`

	ctx, cancel := d.queryCtx(ctx)
	defer cancel()

	var exists int
	err := d.db.QueryRowContext(ctx, q, table).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, mapError(err, "failed to check table existence")
	}
	return true, nil
}

// TableColumns returns the table's column names in ordinal position order.
func (d *Driver) TableColumns(ctx context.Context, table string) ([]string, error) {
	const q = `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = DATABASE()
		  AND table_name   = ?
		ORDER BY ordinal_position`

	ctx, cancel := d.queryCtx(ctx)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, q, table)
	if err != nil {
		return nil, mapError(err, "failed to fetch columns")
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, mapError(err, "failed to scan column name")
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "error iterating columns")
	}
	if cols == nil {
		return nil, errs.Newf(errs.ErrKindNotFound, "table %q does not exist", table)
	}
	return cols, nil
}

// CreateRecordTable creates the dataset table with only its primary-key
// column. Idempotent via IF NOT EXISTS.
func (d *Driver) CreateRecordTable(ctx context.Context, table, keyColumn string) error {
	ctx, cancel := d.queryCtx(ctx)
	defer cancel()

	stmt := database.BuildCreateTable(database.DialectMySQL, table, keyColumn)
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return mapError(err, fmt.Sprintf("failed to create table %q", table))
	}
	return nil
}

// FetchRowsByKey loads only the rows whose key value appears in keys.
func (d *Driver) FetchRowsByKey(ctx context.Context, table, keyColumn string, keys []string) (map[string]map[string]any, error) {
	if len(keys) == 0 {
		return map[string]map[string]any{}, nil
	}

	stmt := database.BuildSelectByKeys(database.DialectMySQL, table, keyColumn, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	ctx, cancel := d.queryCtx(ctx)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, mapError(err, "failed to fetch existing rows")
	}

	scanned, err := database.ScanRows(&sqlRows{rows: rows})
	if err != nil {
		return nil, err
	}
	return database.RowsByKey(scanned, keyColumn), nil
}

// FetchAllRows reads an entire table. Used only for the small bookkeeping
// tables, never for dataset rows.
func (d *Driver) FetchAllRows(ctx context.Context, table string) ([]map[string]any, error) {
	ctx, cancel := d.queryCtx(ctx)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, database.BuildSelectAll(table))
	if err != nil {
		return nil, mapError(err, "failed to fetch rows")
	}
	return database.ScanRows(&sqlRows{rows: rows})
}

// ApplyChangeSet applies one batch. Column additions run first (outside the
// row transaction — MySQL DDL auto-commits regardless), then all row writes
// inside a single transaction.
func (d *Driver) ApplyChangeSet(ctx context.Context, cs *database.ChangeSet) error {
	if cs.Empty() {
		return nil
	}

	for _, col := range cs.AddColumns {
		stmt := database.BuildAddColumn(database.DialectMySQL, cs.Table, col)
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			if mysqlErrNumber(err) == errDuplicateColumn {
				// Another run added it between introspection and apply.
				continue
			}
			return mapApplyError(err, fmt.Sprintf("failed to add column %q", col))
		}
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.ErrKindTxFailed, "failed to begin transaction", err)
	}
	defer tx.Rollback() // no-op after commit

	for _, w := range cs.Inserts {
		stmt, args := database.BuildUpsert(database.DialectMySQL, cs.Table, cs.KeyColumn, w)
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return mapApplyError(err, fmt.Sprintf("failed to insert row %q", w.Key))
		}
	}

	for _, w := range cs.Updates {
		stmt, args := database.BuildUpdate(database.DialectMySQL, cs.Table, cs.KeyColumn, w)
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return mapApplyError(err, fmt.Sprintf("failed to update row %q", w.Key))
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.ErrKindTxFailed, "failed to commit batch", err)
	}
	return nil
}

// --- database/sql type wrappers ---

// sqlRows wraps *sql.Rows to satisfy database.Rows.
type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Next() bool { return r.rows.Next() }

func (r *sqlRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }

func (r *sqlRows) Close() { _ = r.rows.Close() }

func (r *sqlRows) Err() error { return r.rows.Err() }

func (r *sqlRows) Columns() ([]string, error) { return r.rows.Columns() }
