package database

// RowWrite is one row-level change ready for the wire: the key value plus
// the columns being written, in a deterministic order. For inserts Columns
// covers the full record; for updates only the columns whose values differ.
// The key column itself is never listed in Columns.
type RowWrite struct {
	Key     string
	Columns []string
	Values  []any // storage values aligned with Columns
}

// ChangeSet is the full outcome of reconciling one batch against a table,
// handed to the driver for transactional application.
type ChangeSet struct {
	Table     string
	KeyColumn string

	// AddColumns are schema additions, applied before any row write so the
	// row statements can reference them. Always additive, always nullable
	// TEXT — existing columns are never dropped or retyped.
	AddColumns []string

	Inserts []RowWrite
	Updates []RowWrite
}

// Empty reports whether applying the change set would touch the table at all.
func (cs *ChangeSet) Empty() bool {
	return len(cs.AddColumns) == 0 && len(cs.Inserts) == 0 && len(cs.Updates) == 0
}
