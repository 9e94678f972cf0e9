package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/s4/pkg/value"
)

func TestIndexRangeBinaryPushdown(t *testing.T) {
	idx := newIndex()
	for i := 1; i <= 5; i++ {
		idx.Insert(value.NewInt(int32(i)), &Entry{KeyA: KeyID(i)})
	}

	var seen []int
	idx.RangeBinary(value.NewInt(2), value.NewInt(4), func(e *Entry) bool {
		seen = append(seen, int(e.KeyA))
		return true
	})
	assert.Equal(t, []int{2, 3, 4}, seen)
}

func TestIndexRangeBinaryOpenEnds(t *testing.T) {
	idx := newIndex()
	for i := 1; i <= 3; i++ {
		idx.Insert(value.NewInt(int32(i)), &Entry{KeyA: KeyID(i)})
	}

	var lowBound []int
	idx.RangeBinary(value.NewInt(2), nil, func(e *Entry) bool {
		lowBound = append(lowBound, int(e.KeyA))
		return true
	})
	assert.Equal(t, []int{2, 3}, lowBound)

	var noBound []int
	idx.RangeBinary(nil, nil, func(e *Entry) bool {
		noBound = append(noBound, int(e.KeyA))
		return true
	})
	assert.Equal(t, []int{1, 2, 3}, noBound)
}

func TestIndexRemoveDropsEmptyBucket(t *testing.T) {
	idx := newIndex()
	v := value.NewString("x")
	e := &Entry{KeyA: 1}
	idx.Insert(v, e)
	require.Equal(t, 1, idx.Len())

	ok := idx.Remove(v, e)
	assert.True(t, ok)
	assert.Equal(t, 0, idx.Len())

	ok = idx.Remove(v, e)
	assert.False(t, ok, "removing a second time should report not-present")
}

func TestIndexAscendModeCaselessReorders(t *testing.T) {
	idx := newIndex()
	idx.Insert(value.NewString("banana"), &Entry{KeyA: 1})
	idx.Insert(value.NewString("Cherry"), &Entry{KeyA: 2})

	var binaryOrder []string
	idx.AscendMode(value.Binary, func(val *value.Value, entries []*Entry) {
		s, _ := val.Str()
		binaryOrder = append(binaryOrder, s)
	})
	assert.Equal(t, []string{"Cherry", "banana"}, binaryOrder, "uppercase sorts before lowercase in binary order")

	var caselessOrder []string
	idx.AscendMode(value.Caseless, func(val *value.Value, entries []*Entry) {
		s, _ := val.Str()
		caselessOrder = append(caselessOrder, s)
	})
	assert.Equal(t, []string{"banana", "Cherry"}, caselessOrder)
}
