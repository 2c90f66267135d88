package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDKeys(t *testing.T) {
	p := UUIDKeys()

	a, err := p.Key(rec("name", "x"))
	require.NoError(t, err)
	b, err := p.Key(rec("name", "x"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	_, err = uuid.Parse(a)
	assert.NoError(t, err)
}

func TestContentHashKeys(t *testing.T) {
	p := ContentHashKeys()

	a, err := p.Key(rec("name", "x", "height", 3))
	require.NoError(t, err)

	// column order must not matter
	b, err := p.Key(rec("height", 3, "name", "x"))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// content must matter
	c, err := p.Key(rec("name", "x", "height", 4))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	// null and empty string are different contents
	d1, err := p.Key(rec("name", nil))
	require.NoError(t, err)
	d2, err := p.Key(rec("name", ""))
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)
}

func TestSequentialKeys(t *testing.T) {
	p := SequentialKeys(10)

	for _, want := range []string{"10", "11", "12"} {
		got, err := p.Key(rec("name", "x"))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
