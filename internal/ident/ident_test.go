package ident

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTableName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercased", in: "Forest_Survey", want: "forest_survey"},
		{name: "already safe", in: "observations", want: "observations"},
		{name: "truncated to limit", in: strings.Repeat("x", 80), want: strings.Repeat("x", 63)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TableName(tt.in))
		})
	}
}

func TestDerivedTableName(t *testing.T) {
	assert.Equal(t, "observations__labels", DerivedTableName("Observations", "labels"))

	long := DerivedTableName(strings.Repeat("x", 80), "columns")
	assert.LessOrEqual(t, len(long), MaxLen)
	assert.True(t, strings.HasSuffix(long, "__columns"))
}

func TestColumn(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		opts  Options
		taken map[string]bool
		want  string
	}{
		{
			name: "slash becomes double underscore",
			in:   "group1/question_a",
			want: "group1__question_a",
		},
		{
			name: "non-sql characters stripped",
			in:   "lat. (deg)",
			want: "latdeg",
		},
		{
			name: "reverse separator flips path segments",
			in:   "properties/depth",
			opts: Options{ReverseSeparator: "/", Replacements: [][2]string{}},
			want: "depthproperties",
		},
		{
			name:  "collision gets numeric suffix",
			in:    "name",
			taken: map[string]bool{"name": true},
			want:  "name_001",
		},
		{
			name: "truncated to max length",
			in:   strings.Repeat("a", 80),
			want: strings.Repeat("a", 63),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Column(tt.in, tt.taken, tt.opts))
		})
	}
}

func TestColumn_CollisionAfterTruncation(t *testing.T) {
	long := strings.Repeat("b", 80)
	taken := map[string]bool{strings.Repeat("b", 63): true}

	got := Column(long, taken, Options{})
	assert.Equal(t, strings.Repeat("b", 59)+"_001", got)
	assert.LessOrEqual(t, len(got), MaxLen)
}

func TestColumn_TruncationKeepsRunesIntact(t *testing.T) {
	// 62 ASCII bytes plus a two-byte rune straddling the 63-byte limit
	name := strings.Repeat("a", 62) + "é"

	got := Column(name, nil, Options{})
	assert.Equal(t, strings.Repeat("a", 62), got)
	assert.True(t, utf8.ValidString(got))
}

func TestTableName_TruncationKeepsRunesIntact(t *testing.T) {
	got := TableName(strings.Repeat("x", 62) + "ü")
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), MaxLen)
}

func TestColumn_ManyCollisionsStayWithinLimit(t *testing.T) {
	// past 999 collisions the counter needs a fourth digit; the name must
	// shrink to keep the result within the limit
	const maxLen = 10
	name := strings.Repeat("c", 12)

	taken := map[string]bool{}
	for i := 0; i < 1100; i++ {
		got := Column(name, taken, Options{MaxLen: maxLen})
		assert.LessOrEqual(t, len(got), maxLen)
		assert.False(t, taken[got], "uniquified name %q reused", got)
		taken[got] = true
	}
}

func TestCamelToSnake(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "CreatedAt", want: "created_at"},
		{in: "gpsAccuracy", want: "gps_accuracy"},
		{in: "already_snake", want: "already_snake"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CamelToSnake(tt.in))
		})
	}
}
