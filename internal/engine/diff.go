package engine

import (
	"github.com/fieldsync/fieldsync/internal/database"
	"github.com/fieldsync/fieldsync/internal/record"
)

// Diff is the pure outcome of reconciling a batch against the table's
// current rows: three disjoint sets whose sizes sum to the batch size.
// Ordering within each set follows batch input order.
type Diff struct {
	// Inserts are records whose key is absent from the table.
	Inserts record.Batch

	// Updates hold only the key plus the columns whose values differ from
	// the stored row — applying one is a partial update, never a full-row
	// replace.
	Updates record.Batch

	// Unchanged are records whose compared columns all equal the stored row.
	Unchanged record.Batch
}

// ReconcileSchema computes the ordered set of column names appearing
// anywhere in the batch but absent from the existing column set. Pure: the
// caller applies the result. Existing columns are never dropped or retyped,
// so the table's column set only ever grows.
//
// Column creation is driven by name presence alone — a new column whose
// batch values are all null is still created, to hold future non-null
// values.
func ReconcileSchema(existingColumns []string, batch record.Batch) []string {
	have := make(map[string]bool, len(existingColumns))
	for _, c := range existingColumns {
		have[c] = true
	}

	var missing []string
	for _, c := range batch.ColumnUnion() {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

// DiffRows classifies each batch record as insert, update, or unchanged
// against the supplied existing rows (keyed by key text, restricted to the
// batch's keys). Every record must already carry a key value; callers run
// key resolution and de-duplication first.
//
// A column omitted from a record is neither compared nor written — omission
// is not "set to null". An explicit null in the batch against a stored
// non-null value is a change.
func DiffRows(existing map[string]map[string]any, batch record.Batch, keyColumn string, loose bool) Diff {
	var d Diff

	for _, r := range batch {
		keyVal, _ := r.Get(keyColumn)
		row, found := existing[keyVal.StorageText()]
		if !found {
			d.Inserts = append(d.Inserts, r)
			continue
		}

		changed := record.New().Set(keyColumn, keyVal)
		for _, col := range r.Columns() {
			if col == keyColumn {
				continue
			}
			v, _ := r.Get(col)
			// Columns the schema does not have yet scan as absent: the
			// stored side is null, so any non-null batch value differs.
			stored := record.Coerce(row[col])
			if !v.Equal(stored, loose) {
				changed.Set(col, v)
			}
		}

		if changed.Len() > 1 {
			d.Updates = append(d.Updates, changed)
		} else {
			d.Unchanged = append(d.Unchanged, r)
		}
	}

	return d
}

// changeSet assembles the driver-facing ChangeSet from a diff. Column order
// within each RowWrite follows the record's own column order, key excluded.
func changeSet(table, keyColumn string, addColumns []string, d Diff) *database.ChangeSet {
	cs := &database.ChangeSet{
		Table:      table,
		KeyColumn:  keyColumn,
		AddColumns: addColumns,
	}
	for _, r := range d.Inserts {
		cs.Inserts = append(cs.Inserts, rowWrite(r, keyColumn))
	}
	for _, r := range d.Updates {
		cs.Updates = append(cs.Updates, rowWrite(r, keyColumn))
	}
	return cs
}

func rowWrite(r *record.Record, keyColumn string) database.RowWrite {
	keyVal, _ := r.Get(keyColumn)
	w := database.RowWrite{Key: keyVal.StorageText()}
	for _, col := range r.Columns() {
		if col == keyColumn {
			continue
		}
		v, _ := r.Get(col)
		w.Columns = append(w.Columns, col)
		w.Values = append(w.Values, v.StorageValue())
	}
	return w
}
