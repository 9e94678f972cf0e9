package sourcepref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityOrdering(t *testing.T) {
	sp, err := Create([]string{"id3v2", "plugin*", "user"})
	require.NoError(t, err)

	assert.Equal(t, 0, sp.Priority("id3v2"))
	assert.Equal(t, 1, sp.Priority("plugin/lastfm"))
	assert.Equal(t, 2, sp.Priority("user"))
	assert.Equal(t, Worst, sp.Priority("unrelated"))
}

func TestPriorityIsMemoized(t *testing.T) {
	sp, err := Create([]string{"a*"})
	require.NoError(t, err)

	first := sp.Priority("abc")
	sp.cache["abc"] = 99 // simulate a stale-but-cached entry
	assert.Equal(t, 99, sp.Priority("abc"))
	assert.NotEqual(t, first, 99)
}

func TestNilSourcePrefHasNoPreference(t *testing.T) {
	var sp *SourcePref
	assert.Equal(t, 0, sp.Priority("anything"))
}
