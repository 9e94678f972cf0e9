package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStarCrossesSlash(t *testing.T) {
	p, err := Compile("plugin*")
	require.NoError(t, err)

	assert.True(t, p.Match("plugin/lastfm"), "GPatternSpec's '*' has no path-separator concept")
	assert.True(t, p.Match("pluginx"))
	assert.False(t, p.Match("other"))
}

func TestQuestionMarkMatchesSingleChar(t *testing.T) {
	p, err := Compile("a?c")
	require.NoError(t, err)

	assert.True(t, p.Match("abc"))
	assert.False(t, p.Match("ac"))
	assert.False(t, p.Match("abbc"))
}

func TestStringReturnsOriginalText(t *testing.T) {
	p, err := Compile("plugin*")
	require.NoError(t, err)
	assert.Equal(t, "plugin*", p.String())
}

func TestInvalidPatternRejected(t *testing.T) {
	_, err := Compile("[")
	assert.Error(t, err)
}
