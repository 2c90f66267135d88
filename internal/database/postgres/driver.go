// Package postgres implements database.DB on top of pgx/v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldsync/fieldsync/internal/database"
	"github.com/fieldsync/fieldsync/internal/errs"
)

// Driver is a PostgreSQL implementation of database.DB backed by pgxpool.
// It is safe for concurrent use by multiple goroutines, though the engine
// runs a single synchronous writer per ingestion run.
type Driver struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// New connects to PostgreSQL using the provided Config and returns a Driver.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create connection pool", err)
	}

	d := &Driver{pool: pool, queryTimeout: cfg.QueryTimeout}

	if err := d.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return d, nil
}

// --- database.DB implementation ---

// Ping verifies the database is reachable by acquiring and releasing a connection.
func (d *Driver) Ping(ctx context.Context) error {
	if err := d.pool.Ping(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close drains the connection pool. Call when the run ends, on every exit path.
func (d *Driver) Close() {
	d.pool.Close()
}

// queryCtx applies the configured per-statement deadline, if any.
func (d *Driver) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.queryTimeout)
}

// TableExists reports whether a table with the given name exists in the public schema.
func (d *Driver) TableExists(ctx context.Context, table string) (bool, error) {
	const q = `
		SELECT 1
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_type   = 'BASE TABLE'
		  AND table_name   = $1`

	ctx, cancel := d.queryCtx(ctx)
	defer cancel()

	var exists int
	err := d.pool.QueryRow(ctx, q, table).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
		WHERE table_schema = 'public'
		  AND table_name   = $1
		ORDER BY ordinal_position`

	ctx, cancel := d.queryCtx(ctx)
	defer cancel()

	rows, err := d.pool.Query(ctx, q, table)
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
// column. Idempotent: IF NOT EXISTS absorbs races between scheduled runs.
func (d *Driver) CreateRecordTable(ctx context.Context, table, keyColumn string) error {
	ctx, cancel := d.queryCtx(ctx)
	defer cancel()

	sql := database.BuildCreateTable(database.DialectPostgres, table, keyColumn)
	if _, err := d.pool.Exec(ctx, sql); err != nil {
		return mapError(err, fmt.Sprintf("failed to create table %q", table))
	}
	return nil
}

// FetchRowsByKey loads only the rows whose key value appears in keys.
func (d *Driver) FetchRowsByKey(ctx context.Context, table, keyColumn string, keys []string) (map[string]map[string]any, error) {
	if len(keys) == 0 {
		return map[string]map[string]any{}, nil
	}

	sql := database.BuildSelectByKeys(database.DialectPostgres, table, keyColumn, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	ctx, cancel := d.queryCtx(ctx)
	defer cancel()

	rows, err := d.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "failed to fetch existing rows")
	}

	scanned, err := database.ScanRows(&pgxRows{rows: rows})
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

	rows, err := d.pool.Query(ctx, database.BuildSelectAll(table))
	if err != nil {
		return nil, mapError(err, "failed to fetch rows")
	}
	return database.ScanRows(&pgxRows{rows: rows})
}

// ApplyChangeSet applies one batch inside a single transaction. Postgres
// DDL is transactional, so a failure at any step leaves the table exactly
// as it was before the batch.
func (d *Driver) ApplyChangeSet(ctx context.Context, cs *database.ChangeSet) error {
	if cs.Empty() {
		return nil
	}

	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errs.Wrap(errs.ErrKindTxFailed, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	// BuildAddColumn emits IF NOT EXISTS here: a plain ADD COLUMN racing a
	// concurrent run would abort the whole transaction on the duplicate.
	for _, col := range cs.AddColumns {
		sql := database.BuildAddColumn(database.DialectPostgres, cs.Table, col)
		if _, err := tx.Exec(ctx, sql); err != nil {
			return mapApplyError(err, fmt.Sprintf("failed to add column %q", col))
		}
	}

	for _, w := range cs.Inserts {
		sql, args := database.BuildUpsert(database.DialectPostgres, cs.Table, cs.KeyColumn, w)
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return mapApplyError(err, fmt.Sprintf("failed to insert row %q", w.Key))
		}
	}

	for _, w := range cs.Updates {
		sql, args := database.BuildUpdate(database.DialectPostgres, cs.Table, cs.KeyColumn, w)
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return mapApplyError(err, fmt.Sprintf("failed to update row %q", w.Key))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errs.Wrap(errs.ErrKindTxFailed, "failed to commit batch", err)
	}
	return nil
}

// --- pgx type wrappers ---

// pgxRows wraps pgx.Rows to satisfy database.Rows.
type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool { return r.rows.Next() }

func (r *pgxRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }

func (r *pgxRows) Close() { r.rows.Close() }

func (r *pgxRows) Err() error { return r.rows.Err() }

func (r *pgxRows) Columns() ([]string, error) {
	descs := r.rows.FieldDescriptions()
	cols := make([]string, len(descs))
	for i, d := range descs {
		cols[i] = d.Name
	}
	return cols, nil
}
