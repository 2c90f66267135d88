// Package colmap persists the mapping from source field names to their
// sanitized SQL column names in a companion table ("<table>__columns").
//
// ident.Column only guarantees collision-free names within one run; a
// truncated or uniquified name depends on the order fields were seen. The
// persisted mapping makes assignments permanent, so re-running a connector
// with reordered, added, or removed fields can never rename a column.
package colmap

import (
	"context"

	"github.com/fieldsync/fieldsync/internal/database"
	"github.com/fieldsync/fieldsync/internal/errs"
	"github.com/fieldsync/fieldsync/internal/ident"
	"github.com/fieldsync/fieldsync/internal/logger"
)

// Suffix names the companion table holding a dataset's column mappings.
const Suffix = "columns"

const (
	keyColumn  = "original"
	nameColumn = "sql_name"
)

// Store reads and writes column-name mappings through a database.DB.
type Store struct {
	db  database.DB
	log *logger.Logger
}

// NewStore returns a Store writing through db. A nil log falls back to the
// default logger.
func NewStore(db database.DB, log *logger.Logger) *Store {
	if log == nil {
		log = logger.New(nil)
	}
	return &Store{db: db, log: log}
}

// Resolve maps each source field name to its SQL column name for the given
// dataset table. Persisted mappings are reused as-is; unseen fields are
// sanitized with ident.Column against every name ever assigned, and the new
// mappings are written back before returning.
func (s *Store) Resolve(ctx context.Context, table string, fields []string, opts ident.Options) (map[string]string, error) {
	mapTable := ident.DerivedTableName(table, Suffix)

	existing, err := s.load(ctx, mapTable)
	if err != nil {
		return nil, err
	}

	taken := make(map[string]bool, len(existing))
	for _, name := range existing {
		taken[name] = true
	}

	out := make(map[string]string, len(fields))
	var inserts []database.RowWrite
	for _, f := range fields {
		if name, ok := existing[f]; ok {
			out[f] = name
			continue
		}
		name := ident.Column(f, taken, opts)
		taken[name] = true
		out[f] = name
		inserts = append(inserts, database.RowWrite{
			Key:     f,
			Columns: []string{nameColumn},
			Values:  []any{name},
		})
	}

	if len(inserts) == 0 {
		return out, nil
	}

	cs := &database.ChangeSet{
		Table:     mapTable,
		KeyColumn: keyColumn,
		Inserts:   inserts,
	}
	if err := s.db.ApplyChangeSet(ctx, cs); err != nil {
		return nil, err
	}
	s.log.Debugf("table %s: persisted %d new column mappings", table, len(inserts))
	return out, nil
}

// load reads the full mapping table, creating it (with its name column) on
// first use.
func (s *Store) load(ctx context.Context, mapTable string) (map[string]string, error) {
	exists, err := s.db.TableExists(ctx, mapTable)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := s.db.CreateRecordTable(ctx, mapTable, keyColumn); err != nil {
			return nil, err
		}
		cs := &database.ChangeSet{
			Table:      mapTable,
			KeyColumn:  keyColumn,
			AddColumns: []string{nameColumn},
		}
		if err := s.db.ApplyChangeSet(ctx, cs); err != nil {
			return nil, err
		}
		return map[string]string{}, nil
	}

	rows, err := s.db.FetchAllRows(ctx, mapTable)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(rows))
	for _, row := range rows {
		orig, ok := database.KeyText(row[keyColumn])
		if !ok {
			continue
		}
		name, ok := database.KeyText(row[nameColumn])
		if !ok {
			// A mapping without a name cannot be honored; minting a fresh
			// one could silently rename the column, so fail instead.
			return nil, errs.Newf(errs.ErrKindSchemaConflict,
				"mapping table %q has no %s for field %q", mapTable, nameColumn, orig)
		}
		out[orig] = name
	}
	return out, nil
}
