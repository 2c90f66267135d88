package database

import (
	"fmt"
	"strings"
)

// Dialect controls which SQL placeholder style and type names the statement
// builders emit.
type Dialect int

const (
	// DialectPostgres uses $1, $2, … placeholders.
	DialectPostgres Dialect = iota

	// DialectMySQL uses ? placeholders.
	DialectMySQL
)

// placeholder returns the correct parameter placeholder for the dialect.
// Postgres: $1, $2, …   MySQL: ? (index is ignored)
func (d Dialect) placeholder(idx int) string {
	if d == DialectMySQL {
		return "?"
	}
	return fmt.Sprintf("$%d", idx)
}

// keyColumnType is the SQL type used for the primary-key column.
// MySQL cannot index an unbounded TEXT column, so it gets a VARCHAR.
func (d Dialect) keyColumnType() string {
	if d == DialectMySQL {
		return "VARCHAR(255)"
	}
	return "TEXT"
}

// quoteIdent wraps a SQL identifier in double-quotes (ANSI standard).
// This safely handles reserved words and mixed-case names.
// Note: MySQL also accepts double-quoted identifiers when ANSI mode is on,
// but both drivers work correctly with this quoting style.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// BuildCreateTable renders the create-table statement for a fresh dataset
// table: just the primary-key column. Every data column is added later by
// schema reconciliation, so two runs racing on creation stay safe via
// IF NOT EXISTS.
func BuildCreateTable(d Dialect, table, keyColumn string) string {
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s %s PRIMARY KEY)",
		quoteIdent(table), quoteIdent(keyColumn), d.keyColumnType(),
	)
}

// BuildAddColumn renders an additive schema change. New columns are always
// nullable TEXT: maximally permissive, safe for arbitrary future values,
// and immune to type-inference mistakes.
//
// Postgres gets IF NOT EXISTS so a concurrent run adding the same column is
// absorbed by the server; a plain ADD COLUMN failure would poison the
// surrounding transaction and every later statement in the batch. MySQL has
// no such clause, so its driver tolerates the duplicate-column error instead
// (its DDL runs outside the row transaction anyway).
func BuildAddColumn(d Dialect, table, column string) string {
	if d == DialectMySQL {
		return fmt.Sprintf(
			"ALTER TABLE %s ADD COLUMN %s TEXT",
			quoteIdent(table), quoteIdent(column),
		)
	}
	return fmt.Sprintf(
		"ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s TEXT",
		quoteIdent(table), quoteIdent(column),
	)
}

// BuildSelectAll renders the full-table read used for small bookkeeping
// tables (column-name mappings). Dataset tables are never read this way.
func BuildSelectAll(table string) string {
	return fmt.Sprintf("SELECT * FROM %s", quoteIdent(table))
}

// BuildSelectByKeys renders the statement that loads only the rows whose
// key appears in the batch. numKeys placeholders are emitted; the caller
// supplies the key values as arguments in the same order.
func BuildSelectByKeys(d Dialect, table, keyColumn string, numKeys int) string {
	ph := make([]string, numKeys)
	for i := range ph {
		ph[i] = d.placeholder(i + 1)
	}
	return fmt.Sprintf(
		"SELECT * FROM %s WHERE %s IN (%s)",
		quoteIdent(table), quoteIdent(keyColumn), strings.Join(ph, ", "),
	)
}

// BuildUpsert renders the conflict-safe insert for one row. The statement
// inserts the key plus the row's columns and, on a key conflict, overwrites
// exactly those columns — so replaying a batch against a row written by an
// interleaved run converges instead of failing.
func BuildUpsert(d Dialect, table, keyColumn string, w RowWrite) (string, []any) {
	cols := make([]string, 0, len(w.Columns)+1)
	cols = append(cols, quoteIdent(keyColumn))
	for _, c := range w.Columns {
		cols = append(cols, quoteIdent(c))
	}

	ph := make([]string, len(cols))
	args := make([]any, 0, len(cols))
	args = append(args, w.Key)
	args = append(args, w.Values...)
	for i := range ph {
		ph[i] = d.placeholder(i + 1)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(cols, ", "), strings.Join(ph, ", "))

	if d == DialectMySQL {
		if len(w.Columns) == 0 {
			// Key-only row: assigning the key to itself makes the
			// statement a no-op on conflict.
			fmt.Fprintf(&sb, " ON DUPLICATE KEY UPDATE %s = %s",
				quoteIdent(keyColumn), quoteIdent(keyColumn))
			return sb.String(), args
		}
		sets := make([]string, len(w.Columns))
		for i, c := range w.Columns {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", quoteIdent(c), quoteIdent(c))
		}
		fmt.Fprintf(&sb, " ON DUPLICATE KEY UPDATE %s", strings.Join(sets, ", "))
		return sb.String(), args
	}

	if len(w.Columns) == 0 {
		fmt.Fprintf(&sb, " ON CONFLICT (%s) DO NOTHING", quoteIdent(keyColumn))
		return sb.String(), args
	}
	sets := make([]string, len(w.Columns))
	for i, c := range w.Columns {
		sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", quoteIdent(c), quoteIdent(c))
	}
	fmt.Fprintf(&sb, " ON CONFLICT (%s) DO UPDATE SET %s",
		quoteIdent(keyColumn), strings.Join(sets, ", "))
	return sb.String(), args
}

// BuildUpdate renders the column-scoped update for one changed row. Only
// the columns named in the RowWrite are touched — the rest of the row keeps
// its prior values.
func BuildUpdate(d Dialect, table, keyColumn string, w RowWrite) (string, []any) {
	sets := make([]string, len(w.Columns))
	args := make([]any, 0, len(w.Columns)+1)
	for i, c := range w.Columns {
		sets[i] = fmt.Sprintf("%s = %s", quoteIdent(c), d.placeholder(i+1))
	}
	args = append(args, w.Values...)
	args = append(args, w.Key)

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		quoteIdent(table), strings.Join(sets, ", "),
		quoteIdent(keyColumn), d.placeholder(len(w.Columns)+1))
	return sql, args
}
