// Package database defines the driver-neutral contract the upsert engine
// writes through, plus the dialect-aware SQL builders and row-scanning
// helpers shared by the Postgres and MySQL drivers.
//
// Layers above this package talk only to the DB interface — they never
// import the postgres or mysql packages directly.
package database

import "context"

// DB is the contract every database driver implements. One DB handle is
// acquired per ingestion run and released unconditionally when the run ends.
type DB interface {
	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the connection pool.
	Close()

	// TableExists reports whether a table with the given name exists.
	TableExists(ctx context.Context, table string) (bool, error)

	// TableColumns returns the table's column names in ordinal position
	// order. Returns ErrKindNotFound if the table does not exist.
	TableColumns(ctx context.Context, table string) ([]string, error)

	// CreateRecordTable creates the table with only its primary-key column
	// if it does not already exist. Idempotent.
	CreateRecordTable(ctx context.Context, table, keyColumn string) error

	// FetchRowsByKey loads only the rows whose key value appears in keys,
	// returned as a lookup from key text to column→value map. Keys absent
	// from the table are simply missing from the result.
	FetchRowsByKey(ctx context.Context, table, keyColumn string, keys []string) (map[string]map[string]any, error)

	// FetchAllRows reads an entire table. Intended for small bookkeeping
	// tables such as column-name mappings; dataset rows are always fetched
	// by key.
	FetchAllRows(ctx context.Context, table string) ([]map[string]any, error)

	// ApplyChangeSet applies one batch's schema and row changes inside a
	// single transaction: new columns first, then inserts, then updates.
	// On failure nothing from the change set is visible (Postgres; MySQL
	// DDL auto-commits — see the mysql driver for the exact guarantee).
	ApplyChangeSet(ctx context.Context, cs *ChangeSet) error
}
