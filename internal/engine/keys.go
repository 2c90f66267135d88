package engine

import (
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"

	"github.com/fieldsync/fieldsync/internal/record"
)

// DefaultKeyColumn is the implicit primary-key column every dataset table
// carries when the caller does not name one.
const DefaultKeyColumn = "_id"

// KeyPolicy synthesizes a primary-key value for a record that arrived
// without one. Which policy fits is a source-specific decision: sources
// with no native identifiers want content hashing (stable across
// re-ingestion of the same rows), one-shot imports can take UUIDs or a
// running sequence.
type KeyPolicy interface {
	Key(r *record.Record) (string, error)
}

// UUIDKeys returns a policy that assigns a random UUID to each keyless
// record. Re-running the same import will mint fresh keys, so this suits
// sources whose batches never overlap.
func UUIDKeys() KeyPolicy {
	return uuidPolicy{}
}

type uuidPolicy struct{}

func (uuidPolicy) Key(*record.Record) (string, error) {
	return uuid.NewString(), nil
}

// ContentHashKeys returns a policy that derives the key from the record's
// content: the same logical row always hashes to the same key, so
// re-ingesting an identical batch cannot create duplicates.
func ContentHashKeys() KeyPolicy {
	return hashPolicy{}
}

type hashPolicy struct{}

func (hashPolicy) Key(r *record.Record) (string, error) {
	cols := append([]string(nil), r.Columns()...)
	sort.Strings(cols)

	var sb strings.Builder
	for _, c := range cols {
		v, _ := r.Get(c)
		sb.WriteString(c)
		sb.WriteByte('=')
		if v.IsNull() {
			sb.WriteByte(0x00) // distinguishes null from empty string
		} else {
			sb.WriteString(v.StorageText())
		}
		sb.WriteByte(0x1e)
	}
	return strconv.FormatUint(xxh3.HashString(sb.String()), 16), nil
}

// SequentialKeys returns a policy that numbers keyless records from start
// upward. Not safe for re-ingestion of overlapping batches; intended for
// one-shot file imports where row position is the identity.
func SequentialKeys(start uint64) KeyPolicy {
	return &seqPolicy{next: start}
}

type seqPolicy struct {
	next uint64
}

func (p *seqPolicy) Key(*record.Record) (string, error) {
	k := strconv.FormatUint(p.next, 10)
	p.next++
	return k, nil
}
