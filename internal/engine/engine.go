// Package engine implements the generic tabular upsert engine: given a
// target table, a primary-key column (or synthesis policy), and a batch of
// semi-structured records, it reconciles the table's schema, classifies
// each record as insert / update / unchanged, and applies the result in one
// transaction.
//
// The engine never deletes rows or columns: the table ends up containing
// the union of its prior state and the batch, with batch values winning for
// shared keys. Applying the same batch twice is a no-op the second time.
package engine

import (
	"context"

	"github.com/fieldsync/fieldsync/internal/database"
	"github.com/fieldsync/fieldsync/internal/errs"
	"github.com/fieldsync/fieldsync/internal/logger"
	"github.com/fieldsync/fieldsync/internal/record"
)

// MissingKeyMode selects what happens to a record with no usable key when
// no synthesis policy is configured.
type MissingKeyMode int

const (
	// MissingKeyAbort fails the whole batch (fail closed, the default):
	// nothing is written, so no data is silently dropped.
	MissingKeyAbort MissingKeyMode = iota

	// MissingKeySkip drops the offending records and reports them in
	// Summary.SkippedRows.
	MissingKeySkip
)

// Options configures one engine instance. The zero value is usable: key
// column "_id", no synthesis (missing keys abort), exact string equality.
type Options struct {
	// KeyColumn is the primary-key column name. Defaults to DefaultKeyColumn.
	KeyColumn string

	// Keys synthesizes keys for records that arrive without one.
	// Nil means no synthesis; MissingKeys then decides the outcome.
	Keys KeyPolicy

	// MissingKeys controls strictness when Keys is nil and a record has no
	// key value.
	MissingKeys MissingKeyMode

	// LooseWhitespace makes string comparison whitespace-insensitive
	// (trim + collapse runs) when diffing against stored values.
	LooseWhitespace bool
}

// Summary reports what one batch did to the table. Counts exactly match
// the sizes of the collections that were applied.
type Summary struct {
	NewRows       int
	UpdatedRows   int
	UnchangedRows int
	SkippedRows   int
	NewColumns    int
}

// Engine applies batches of records to dataset tables through a database.DB.
type Engine struct {
	db   database.DB
	log  *logger.Logger
	opts Options
}

// New returns an Engine writing through db. A nil log falls back to the
// default logger.
func New(db database.DB, opts Options, log *logger.Logger) *Engine {
	if opts.KeyColumn == "" {
		opts.KeyColumn = DefaultKeyColumn
	}
	if log == nil {
		log = logger.New(nil)
	}
	return &Engine{db: db, log: log, opts: opts}
}

// Run applies one batch to the named table and returns the summary.
//
// An empty batch is a complete no-op: no table creation, no schema reads,
// all-zero counts. On any error the returned Summary is zero — application
// is all-or-nothing, so no partial counts can exist.
func (e *Engine) Run(ctx context.Context, table string, batch record.Batch) (Summary, error) {
	if len(batch) == 0 {
		e.log.Debugf("table %s: empty batch, nothing to do", table)
		return Summary{}, nil
	}

	resolved, skipped, err := e.resolveKeys(batch)
	if err != nil {
		return Summary{}, err
	}
	resolved = resolved.DedupeByKey(e.opts.KeyColumn)

	exists, err := e.db.TableExists(ctx, table)
	if err != nil {
		return Summary{}, err
	}
	if !exists {
		e.log.Infof("table %s does not exist, creating it", table)
		if err := e.db.CreateRecordTable(ctx, table, e.opts.KeyColumn); err != nil {
			return Summary{}, err
		}
	}

	columns, err := e.db.TableColumns(ctx, table)
	if err != nil {
		return Summary{}, err
	}

	newColumns := ReconcileSchema(columns, resolved)

	keys := make([]string, len(resolved))
	for i, r := range resolved {
		v, _ := r.Get(e.opts.KeyColumn)
		keys[i] = v.StorageText()
	}
	existing, err := e.db.FetchRowsByKey(ctx, table, e.opts.KeyColumn, keys)
	if err != nil {
		return Summary{}, err
	}

	diff := DiffRows(existing, resolved, e.opts.KeyColumn, e.opts.LooseWhitespace)

	cs := changeSet(table, e.opts.KeyColumn, newColumns, diff)
	if err := e.db.ApplyChangeSet(ctx, cs); err != nil {
		return Summary{}, err
	}

	summary := Summary{
		NewRows:       len(diff.Inserts),
		UpdatedRows:   len(diff.Updates),
		UnchangedRows: len(diff.Unchanged),
		SkippedRows:   skipped,
		NewColumns:    len(newColumns),
	}
	e.log.InfoWith("batch applied", map[string]any{
		"table":       table,
		"new_rows":    summary.NewRows,
		"updated":     summary.UpdatedRows,
		"unchanged":   summary.UnchangedRows,
		"skipped":     summary.SkippedRows,
		"new_columns": summary.NewColumns,
	})
	return summary, nil
}

// resolveKeys ensures every surviving record carries a text key value.
// Records with a key keep it (non-text key values are canonicalized to
// text, matching how keys are stored). Keyless records go through the
// synthesis policy, get skipped, or abort the batch, per Options.
func (e *Engine) resolveKeys(batch record.Batch) (record.Batch, int, error) {
	out := make(record.Batch, 0, len(batch))
	skipped := 0

	for i, r := range batch {
		v, ok := r.Get(e.opts.KeyColumn)
		if ok && !v.IsNull() {
			if v.Kind() != record.KindText {
				r = r.Clone()
				r.Set(e.opts.KeyColumn, record.Text(v.StorageText()))
			}
			out = append(out, r)
			continue
		}

		if e.opts.Keys == nil {
			if e.opts.MissingKeys == MissingKeySkip {
				e.log.Warnf("record %d has no value for key column %q, skipping", i, e.opts.KeyColumn)
				skipped++
				continue
			}
			return nil, 0, errs.Newf(errs.ErrKindMissingKey,
				"record %d has no value for key column %q and no key policy is configured", i, e.opts.KeyColumn)
		}

		key, err := e.opts.Keys.Key(r)
		if err != nil {
			return nil, 0, errs.Wrap(errs.ErrKindMissingKey, "key synthesis failed", err)
		}
		r = r.Clone()
		r.Set(e.opts.KeyColumn, record.Text(key))
		out = append(out, r)
	}

	return out, skipped, nil
}
