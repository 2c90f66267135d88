package record

// Batch is one run's worth of records, in source order.
type Batch []*Record

// ColumnUnion returns every column name appearing anywhere in the batch,
// in first-seen order across records.
func (b Batch) ColumnUnion() []string {
	var union []string
	seen := make(map[string]bool)
	for _, r := range b {
		for _, c := range r.Columns() {
			if !seen[c] {
				seen[c] = true
				union = append(union, c)
			}
		}
	}
	return union
}

// DedupeByKey collapses records sharing the same key value: the last
// occurrence in input order supersedes earlier ones. The surviving record
// keeps the position of the first occurrence, so overall batch order stays
// stable. Records with a null or absent key are passed through untouched.
func (b Batch) DedupeByKey(keyColumn string) Batch {
	out := make(Batch, 0, len(b))
	at := make(map[string]int)

	for _, r := range b {
		v, ok := r.Get(keyColumn)
		if !ok || v.IsNull() {
			out = append(out, r)
			continue
		}
		key := v.storageText()
		if i, dup := at[key]; dup {
			out[i] = r
			continue
		}
		at[key] = len(out)
		out = append(out, r)
	}
	return out
}
