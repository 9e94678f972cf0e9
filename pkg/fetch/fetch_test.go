package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/s4/pkg/cond"
	"github.com/cuemby/s4/pkg/sourcepref"
	"github.com/cuemby/s4/pkg/store"
	"github.com/cuemby/s4/pkg/value"
)

func TestRunResolvesColumnsAndDedupes(t *testing.T) {
	s := store.New()
	s.Add("url", value.NewString("a"), "artist", value.NewString("X"), "id3v2")

	f := cond.NewFilter(cond.Exists, "url", nil, nil, value.Binary, 0)
	require.NoError(t, cond.Bind(f, s))
	pivots := cond.Eval(f, s)
	require.Len(t, pivots, 1)

	fs := NewFetchSpec(
		NewColumn("url", nil, Data),
		NewColumn("artist", nil, Parent),
	)
	fs.Bind(s)

	rows := Run(pivots, s, fs)
	require.Len(t, rows, 1)
	require.Len(t, rows[0], 2)

	urlCell := rows[0][0]
	require.Len(t, urlCell.Values, 1)
	urlVal, _ := urlCell.Values[0].Val.Str()
	assert.Equal(t, "a", urlVal)

	artistCell := rows[0][1]
	require.Len(t, artistCell.Values, 1)
	assert.Equal(t, "id3v2", artistCell.Values[0].Src)
	artistVal, _ := artistCell.Values[0].Val.Str()
	assert.Equal(t, "X", artistVal)
}

func TestRunSourcePreferenceRestrictsCell(t *testing.T) {
	s := store.New()
	s.Add("url", value.NewString("a"), "artist", value.NewString("wrong"), "plugin/lastfm")
	s.Add("url", value.NewString("a"), "artist", value.NewString("right"), "id3v2")

	f := cond.NewFilter(cond.Exists, "url", nil, nil, value.Binary, 0)
	require.NoError(t, cond.Bind(f, s))
	pivots := cond.Eval(f, s)

	sp, err := sourcepref.Create([]string{"id3v2", "plugin/lastfm"})
	require.NoError(t, err)

	fs := NewFetchSpec(NewColumn("artist", sp, Parent))
	fs.Bind(s)

	rows := Run(pivots, s, fs)
	require.Len(t, rows, 1)
	require.Len(t, rows[0][0].Values, 1)
	got, _ := rows[0][0].Values[0].Val.Str()
	assert.Equal(t, "right", got)
}
