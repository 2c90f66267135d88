// Package ident sanitizes caller-supplied names into SQL-safe identifiers.
//
// The upsert engine never rewrites names itself — connectors run their
// source field names and dataset names through this package before handing
// records over. All rules target the 63-byte Postgres identifier limit,
// which is the tightest of the supported backends.
package ident

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxLen is the identifier length limit (Postgres NAMEDATALEN - 1).
const MaxLen = 63

var nonSQLChars = regexp.MustCompile(`[ ./?\[\]\\,<>(){}]`)

var camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// TableName normalizes a dataset name into a table identifier: lowercased
// and truncated to MaxLen. Lowercasing is unconditional so that two dataset
// names differing only in case always resolve to the same table.
func TableName(name string) string {
	name = strings.ToLower(name)
	return truncate(name, MaxLen)
}

// DerivedTableName builds the name of an auxiliary table tied to a primary
// dataset table ("<base>__<suffix>"), truncating the base so the full name
// fits within MaxLen.
func DerivedTableName(base, suffix string) string {
	base = strings.ToLower(base)
	room := MaxLen - len(suffix) - 2
	if room < 1 {
		room = 1
	}
	return truncate(base, room) + "__" + suffix
}

// Options controls how Column rewrites a source field name.
type Options struct {
	// ReverseSeparator, when non-empty, splits the name on this separator,
	// reverses the segments, and rejoins them. Useful for nested property
	// paths where the leaf name should lead.
	ReverseSeparator string

	// Replacements are (old, new) pairs applied in order before stripping.
	// When nil, the default single pair {"/", "__"} is used; pass an empty
	// non-nil slice to disable replacements entirely.
	Replacements [][2]string

	// MaxLen overrides the identifier length limit. Zero means MaxLen.
	MaxLen int
}

// DefaultReplacements maps nested-path separators to double underscores.
var DefaultReplacements = [][2]string{{"/", "__"}}

// Column sanitizes one source field name into a SQL-safe column name that
// does not collide with any name in taken. The caller owns taken and should
// add the returned name to it between calls.
func Column(name string, taken map[string]bool, opts Options) string {
	repl := opts.Replacements
	if repl == nil {
		repl = DefaultReplacements
	}
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = MaxLen
	}

	key := name
	if sep := opts.ReverseSeparator; sep != "" {
		key = reverseParts(key, sep)
	}
	for _, p := range repl {
		key = strings.ReplaceAll(key, p[0], p[1])
	}
	key = nonSQLChars.ReplaceAllString(key, "")

	return uniquify(key, taken, maxLen)
}

// CamelToSnake converts a CamelCase name to snake_case.
func CamelToSnake(name string) string {
	return strings.ToLower(camelBoundary.ReplaceAllString(name, "${1}_${2}"))
}

// reverseParts reverses the segments of a separator-delimited name.
func reverseParts(name, sep string) string {
	parts := strings.Split(name, sep)
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, sep)
}

// uniquify truncates the identifier to maxLen and, on collision with taken,
// appends a numeric suffix until the name is free. The name is re-truncated
// to make room, so the result never exceeds maxLen even when the counter
// grows past three digits.
func uniquify(name string, taken map[string]bool, maxLen int) string {
	out := truncate(name, maxLen)
	for n := 1; taken[out]; n++ {
		suffix := fmt.Sprintf("_%03d", n)
		out = truncate(name, maxLen-len(suffix)) + suffix
	}
	return out
}

// truncate cuts s to at most n bytes without splitting a UTF-8 rune.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
