package engine

import (
	"context"

	"github.com/fieldsync/fieldsync/internal/database"
	"github.com/fieldsync/fieldsync/internal/errs"
)

// fakeDB is an in-memory database.DB with the same observable semantics as
// the real drivers: additive-only schema, upsert-by-key inserts, and
// column-scoped updates. failApply simulates a transaction failure — when
// set, ApplyChangeSet returns it without mutating anything.
type fakeDB struct {
	tables    map[string]*fakeTable
	failApply error
	applies   int
}

type fakeTable struct {
	keyColumn string
	columns   []string
	rows      map[string]map[string]any
}

func newFakeDB() *fakeDB {
	return &fakeDB{tables: make(map[string]*fakeTable)}
}

func (f *fakeDB) Ping(context.Context) error { return nil }
func (f *fakeDB) Close()                     {}

func (f *fakeDB) TableExists(_ context.Context, table string) (bool, error) {
	_, ok := f.tables[table]
	return ok, nil
}

func (f *fakeDB) TableColumns(_ context.Context, table string) ([]string, error) {
	t, ok := f.tables[table]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "table %q does not exist", table)
	}
	return append([]string(nil), t.columns...), nil
}

func (f *fakeDB) CreateRecordTable(_ context.Context, table, keyColumn string) error {
	if _, ok := f.tables[table]; ok {
		return nil
	}
	f.tables[table] = &fakeTable{
		keyColumn: keyColumn,
		columns:   []string{keyColumn},
		rows:      make(map[string]map[string]any),
	}
	return nil
}

func (f *fakeDB) FetchRowsByKey(_ context.Context, table, keyColumn string, keys []string) (map[string]map[string]any, error) {
	t, ok := f.tables[table]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "table %q does not exist", table)
	}
	out := make(map[string]map[string]any)
	for _, k := range keys {
		if row, ok := t.rows[k]; ok {
			cp := make(map[string]any, len(row))
			for c, v := range row {
				cp[c] = v
			}
			out[k] = cp
		}
	}
	return out, nil
}

func (f *fakeDB) FetchAllRows(_ context.Context, table string) ([]map[string]any, error) {
	t, ok := f.tables[table]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "table %q does not exist", table)
	}
	out := make([]map[string]any, 0, len(t.rows))
	for _, row := range t.rows {
		cp := make(map[string]any, len(row))
		for c, v := range row {
			cp[c] = v
		}
		out = append(out, cp)
	}
	return out, nil
}

func (f *fakeDB) ApplyChangeSet(_ context.Context, cs *database.ChangeSet) error {
	if f.failApply != nil {
		return f.failApply
	}
	t, ok := f.tables[cs.Table]
	if !ok {
		return errs.Newf(errs.ErrKindNotFound, "table %q does not exist", cs.Table)
	}
	f.applies++

	for _, col := range cs.AddColumns {
		if !t.hasColumn(col) {
			t.columns = append(t.columns, col)
		}
	}

	for _, w := range cs.Inserts {
		row, ok := t.rows[w.Key]
		if !ok {
			row = map[string]any{cs.KeyColumn: w.Key}
			t.rows[w.Key] = row
		}
		for i, c := range w.Columns {
			row[c] = w.Values[i]
		}
	}

	for _, w := range cs.Updates {
		row, ok := t.rows[w.Key]
		if !ok {
			return errs.Newf(errs.ErrKindTxFailed, "update for missing key %q", w.Key)
		}
		for i, c := range w.Columns {
			row[c] = w.Values[i]
		}
	}

	return nil
}

func (t *fakeTable) hasColumn(col string) bool {
	for _, c := range t.columns {
		if c == col {
			return true
		}
	}
	return false
}

// seed creates a table with the given columns and rows, bypassing the engine.
func (f *fakeDB) seed(table, keyColumn string, columns []string, rows ...map[string]any) {
	t := &fakeTable{
		keyColumn: keyColumn,
		columns:   append([]string{keyColumn}, columns...),
		rows:      make(map[string]map[string]any),
	}
	for _, row := range rows {
		key, _ := database.KeyText(row[keyColumn])
		t.rows[key] = row
	}
	f.tables[table] = t
}
