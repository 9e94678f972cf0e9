package cond

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/s4/pkg/sourcepref"
	"github.com/cuemby/s4/pkg/store"
	"github.com/cuemby/s4/pkg/value"
)

func TestGreaterFilterMatchesExpectedRange(t *testing.T) {
	s := store.New()
	s.Add("url", value.NewString("a"), "tracknr", value.NewInt(7), "plugin/id3")

	f := NewFilter(Greater, "tracknr", value.NewInt(5), nil, value.Binary, 0)
	require.NoError(t, Bind(f, s))
	assert.Len(t, Eval(f, s), 1)

	f2 := NewFilter(Greater, "tracknr", value.NewInt(10), nil, value.Binary, 0)
	require.NoError(t, Bind(f2, s))
	assert.Empty(t, Eval(f2, s))
}

func TestExistsFilterFindsEntryAcrossKeys(t *testing.T) {
	s := store.New()
	s.Add("url", value.NewString("a"), "artist", value.NewString("X"), "id3")

	f := NewFilter(Exists, "artist", nil, nil, value.Binary, 0)
	require.NoError(t, Bind(f, s))

	pivots := Eval(f, s)
	require.Len(t, pivots, 1)
	got, _ := pivots[0].Val.Str()
	assert.Equal(t, "X", got, "the pivot anchors on the driver filter's own key (artist), not the joined url")
}

func TestAndCombinerJoinsAcrossKeys(t *testing.T) {
	s := store.New()
	s.Add("url", value.NewString("a"), "artist", value.NewString("X"), "id3")
	s.Add("url", value.NewString("b"), "artist", value.NewString("Y"), "id3")

	urlFilter := NewFilter(Equal, "url", value.NewString("a"), nil, value.Binary, 0)
	artistFilter := NewFilter(Equal, "artist", value.NewString("X"), nil, value.Binary, 0)
	c := NewCombiner(And, urlFilter, artistFilter)
	require.NoError(t, Bind(c, s))

	pivots := Eval(c, s)
	require.Len(t, pivots, 1)
	got, _ := pivots[0].Val.Str()
	assert.Equal(t, "a", got)
}

func TestNotCombinerInverts(t *testing.T) {
	s := store.New()
	s.Add("url", value.NewString("a"), "artist", value.NewString("X"), "id3")
	s.Add("url", value.NewString("b"), "artist", value.NewString("Y"), "id3")

	urlFilter := NewFilter(Exists, "url", nil, nil, value.Binary, 0)
	notY := NewCombiner(Not, NewFilter(Equal, "artist", value.NewString("Y"), nil, value.Binary, 0))
	c := NewCombiner(And, urlFilter, notY)
	require.NoError(t, Bind(c, s))

	pivots := Eval(c, s)
	require.Len(t, pivots, 1)
	got, _ := pivots[0].Val.Str()
	assert.Equal(t, "a", got)
}

func TestMatchFilterCrossesSlash(t *testing.T) {
	s := store.New()
	s.Add("url", value.NewString("a"), "source", value.NewString("plugin/lastfm"), "id3")
	s.Add("url", value.NewString("b"), "source", value.NewString("other"), "id3")

	f := NewFilter(Match, "source", value.NewString("plugin*"), nil, value.Binary, 0)
	require.NoError(t, Bind(f, s))

	pivots := Eval(f, s)
	require.Len(t, pivots, 1, "plugin* must match plugin/lastfm the way GPatternSpec does, crossing the '/'")
	got, _ := pivots[0].Val.Str()
	assert.Equal(t, "plugin/lastfm", got)
}

func TestSourcePrefRestrictsToTopPriority(t *testing.T) {
	s := store.New()
	s.Add("url", value.NewString("a"), "artist", value.NewString("wrong"), "plugin/lastfm")
	s.Add("url", value.NewString("a"), "artist", value.NewString("right"), "id3v2")

	sp, err := sourcepref.Create([]string{"id3v2", "plugin/lastfm"})
	require.NoError(t, err)

	urlFilter := NewFilter(Equal, "url", value.NewString("a"), nil, value.Binary, 0)
	artistFilter := NewFilter(Equal, "artist", value.NewString("right"), sp, value.Binary, 0)
	c := NewCombiner(And, urlFilter, artistFilter)
	require.NoError(t, Bind(c, s))

	pivots := Eval(c, s)
	require.Len(t, pivots, 1)
}
