// Package record models the semi-structured rows flowing through the upsert
// engine: a tagged-union Value type, an insertion-ordered Record, and Batch
// helpers for whole-run operations (column union, key de-duplication).
//
// Upstream sources produce loosely-typed rows with ad hoc keys; Coerce turns
// any scalar (or nested structure) into a Value so the rest of the system
// never touches reflection or bare interface{} values.
package record

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindText
	KindNumber
	KindBool
	KindGeometry // geometry carried as text (WKT / GeoJSON fragment)
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindGeometry:
		return "geometry"
	default:
		return "unknown"
	}
}

// Value is the single variant type for all cell values.
// The zero Value is Null.
type Value struct {
	kind Kind
	text string
	num  float64
	bit  bool
}

// Null returns the null Value.
func Null() Value { return Value{} }

// Text returns a text Value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Number returns a numeric Value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, bit: b} }

// Geometry returns a geometry Value carrying its textual representation.
func Geometry(s string) Value { return Value{kind: KindGeometry, text: s} }

// Coerce converts a loosely-typed input into a Value. Nested structures
// (maps, slices) are serialized to JSON text, matching how upstream
// submissions store repeat groups and attachments lists.
func Coerce(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case string:
		return Text(t)
	case []byte:
		return Text(string(t))
	case bool:
		return Bool(t)
	case int:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case float32:
		return Number(float64(t))
	case float64:
		return Number(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return Number(f)
		}
		return Text(t.String())
	case time.Time:
		return Text(t.UTC().Format(time.RFC3339))
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return Text(fmt.Sprintf("%v", t))
		}
		return Text(string(b))
	default:
		return Text(fmt.Sprintf("%v", t))
	}
}

// Kind returns which variant the Value holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the Value is the null variant.
func (v Value) IsNull() bool { return v.kind == KindNull }

// StorageValue returns the driver-level argument used when writing this
// Value to a table. Dataset columns are TEXT, so every non-null variant
// renders to its canonical text form; null stays nil so the column is
// stored as SQL NULL.
func (v Value) StorageValue() any {
	if v.kind == KindNull {
		return nil
	}
	return v.storageText()
}

// StorageText returns the canonical text rendering of the Value, or ""
// for null. Callers that need to distinguish null from an empty string
// should check IsNull first.
func (v Value) StorageText() string {
	if v.kind == KindNull {
		return ""
	}
	return v.storageText()
}

// storageText is the canonical text rendering of a non-null Value.
// Numbers drop trailing zeros ("1.50" → "1.5", "3.0" → "3").
func (v Value) storageText() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.bit)
	default:
		return v.text
	}
}

// asNumber reports the numeric interpretation of the Value, if one exists.
// Text that parses as a float counts, so stored "1.0" equals incoming 1.
func (v Value) asNumber() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64)
		return f, err == nil && strings.TrimSpace(v.text) != ""
	default:
		return 0, false
	}
}

// Equal reports whether two values are the same for diffing purposes.
//
// Rules:
//   - null equals only null
//   - if either side is a number and both sides parse numerically,
//     compare numerically (formatting differences are not changes)
//   - otherwise compare the canonical text renderings; when loose is
//     true, whitespace runs are collapsed and the ends trimmed first
func (v Value) Equal(other Value, loose bool) bool {
	if v.IsNull() || other.IsNull() {
		return v.IsNull() && other.IsNull()
	}

	if v.kind == KindNumber || other.kind == KindNumber {
		a, aok := v.asNumber()
		b, bok := other.asNumber()
		if aok && bok {
			return a == b
		}
	}

	left, right := v.storageText(), other.storageText()
	if loose {
		left, right = collapseSpace(left), collapseSpace(right)
	}
	return left == right
}

// collapseSpace trims the string and collapses internal whitespace runs to a
// single space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
