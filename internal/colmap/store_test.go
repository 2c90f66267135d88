package colmap

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsync/fieldsync/internal/database"
	"github.com/fieldsync/fieldsync/internal/errs"
	"github.com/fieldsync/fieldsync/internal/ident"
)

// fakeDB implements the subset of database.DB behavior the store exercises:
// table creation, full-table reads, and change-set application.
type fakeDB struct {
	tables map[string]*fakeTable
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
			out[k] = row
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
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeDB) ApplyChangeSet(_ context.Context, cs *database.ChangeSet) error {
	t, ok := f.tables[cs.Table]
	if !ok {
		return errs.Newf(errs.ErrKindNotFound, "table %q does not exist", cs.Table)
	}
	t.columns = append(t.columns, cs.AddColumns...)
	for _, w := range cs.Inserts {
		row := map[string]any{cs.KeyColumn: w.Key}
		for i, c := range w.Columns {
			row[c] = w.Values[i]
		}
		t.rows[w.Key] = row
	}
	return nil
}

func TestResolve_CreatesMappingTableOnFirstUse(t *testing.T) {
	db := newFakeDB()
	s := NewStore(db, nil)

	got, err := s.Resolve(context.Background(), "observations",
		[]string{"tree/common_name", "lat. (deg)"}, ident.Options{})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"tree/common_name": "tree__common_name",
		"lat. (deg)":       "latdeg",
	}, got)

	mt := db.tables["observations__columns"]
	require.NotNil(t, mt)
	assert.Equal(t, "tree__common_name", mt.rows["tree/common_name"]["sql_name"])
}

func TestResolve_ReusesPersistedNamesAcrossRuns(t *testing.T) {
	db := newFakeDB()
	ctx := context.Background()

	// two long names that truncate to the same 63 bytes; their suffixes
	// depend on assignment order
	a := strings.Repeat("f", 70) + "_one"
	b := strings.Repeat("f", 70) + "_two"

	first, err := NewStore(db, nil).Resolve(ctx, "observations", []string{a, b}, ident.Options{})
	require.NoError(t, err)
	require.NotEqual(t, first[a], first[b])

	// a later run sees the fields in the opposite order, with a newcomer
	second, err := NewStore(db, nil).Resolve(ctx, "observations", []string{b, a, "extra"}, ident.Options{})
	require.NoError(t, err)

	assert.Equal(t, first[a], second[a], "persisted name must survive reordering")
	assert.Equal(t, first[b], second[b], "persisted name must survive reordering")
	assert.Equal(t, "extra", second["extra"])
}

func TestResolve_NewFieldAvoidsPersistedNames(t *testing.T) {
	db := newFakeDB()
	ctx := context.Background()
	s := NewStore(db, nil)

	_, err := s.Resolve(ctx, "observations", []string{"name"}, ident.Options{})
	require.NoError(t, err)

	// a different source field sanitizes to the already-assigned "name"
	got, err := s.Resolve(ctx, "observations", []string{"name."}, ident.Options{})
	require.NoError(t, err)
	assert.Equal(t, "name_001", got["name."])
}

func TestResolve_NothingNewWritesNothing(t *testing.T) {
	db := newFakeDB()
	ctx := context.Background()
	s := NewStore(db, nil)

	_, err := s.Resolve(ctx, "observations", []string{"name"}, ident.Options{})
	require.NoError(t, err)
	before := len(db.tables["observations__columns"].rows)

	_, err = s.Resolve(ctx, "observations", []string{"name"}, ident.Options{})
	require.NoError(t, err)
	assert.Equal(t, before, len(db.tables["observations__columns"].rows))
}

func TestResolve_CorruptMappingFailsClosed(t *testing.T) {
	db := newFakeDB()
	ctx := context.Background()
	s := NewStore(db, nil)

	_, err := s.Resolve(ctx, "observations", []string{"name"}, ident.Options{})
	require.NoError(t, err)
	db.tables["observations__columns"].rows["name"]["sql_name"] = nil

	_, err = s.Resolve(ctx, "observations", []string{"name"}, ident.Options{})
	require.Error(t, err)
	assert.True(t, errs.IsSchemaConflict(err))
}
