package record

// Record is an insertion-ordered mapping of column name to Value.
// Records in one batch need not share identical column sets.
type Record struct {
	cols []string
	vals map[string]Value
}

// New returns an empty Record.
func New() *Record {
	return &Record{vals: make(map[string]Value)}
}

// FromMap builds a Record from a plain map, coercing every value.
// Column order follows the order of the cols slice; columns missing from
// the map are skipped.
func FromMap(cols []string, m map[string]any) *Record {
	r := New()
	for _, c := range cols {
		if v, ok := m[c]; ok {
			r.Set(c, Coerce(v))
		}
	}
	return r
}

// Set stores a value under the given column, preserving first-set order.
func (r *Record) Set(col string, v Value) *Record {
	if _, ok := r.vals[col]; !ok {
		r.cols = append(r.cols, col)
	}
	r.vals[col] = v
	return r
}

// SetAny coerces v and stores it under the given column.
func (r *Record) SetAny(col string, v any) *Record {
	return r.Set(col, Coerce(v))
}

// Get returns the value for col and whether the column is present.
// An explicit null is present; an omitted column is not.
func (r *Record) Get(col string) (Value, bool) {
	v, ok := r.vals[col]
	return v, ok
}

// Has reports whether the column is present in the record.
func (r *Record) Has(col string) bool {
	_, ok := r.vals[col]
	return ok
}

// Columns returns the record's column names in insertion order.
// The returned slice must not be mutated.
func (r *Record) Columns() []string { return r.cols }

// Len returns the number of columns in the record.
func (r *Record) Len() int { return len(r.cols) }

// Clone returns an independent copy of the record.
func (r *Record) Clone() *Record {
	c := &Record{
		cols: append([]string(nil), r.cols...),
		vals: make(map[string]Value, len(r.vals)),
	}
	for k, v := range r.vals {
		c.vals[k] = v
	}
	return c
}
