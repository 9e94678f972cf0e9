package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringAccessors(t *testing.T) {
	v := NewString("hello")
	s, err := v.Str()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	_, err = v.Int()
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestIntAccessors(t *testing.T) {
	v := NewInt(7)
	i, err := v.Int()
	require.NoError(t, err)
	assert.Equal(t, int32(7), i)

	_, err = v.Str()
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestEqualityIsTypeExact(t *testing.T) {
	assert.False(t, NewInt(0).Equal(NewString("0")))
	assert.True(t, NewInt(5).Equal(NewInt(5)))
	assert.True(t, NewString("x").Equal(NewString("x")))
}

func TestCrossTypeOrderingIsDeterministic(t *testing.T) {
	i := NewInt(100)
	s := NewString("a")
	assert.Equal(t, -1, i.Compare(s, Binary))
	assert.Equal(t, 1, s.Compare(i, Binary))
}

func TestCaselessComparison(t *testing.T) {
	a := NewString("Alpha")
	b := NewString("alpha")
	assert.NotEqual(t, 0, a.Compare(b, Binary))
	assert.Equal(t, 0, a.Compare(b, Caseless))
}

func TestCollateOrdering(t *testing.T) {
	beta := NewString("béta")
	alpha := NewString("alpha")
	gamma := NewString("gamma")

	assert.Equal(t, -1, alpha.Compare(beta, Collate))
	assert.Equal(t, -1, beta.Compare(gamma, Collate))
}

func TestNormalizedFormsCachedOnce(t *testing.T) {
	v := NewString("Mixed")
	c1, err := v.Caseless()
	require.NoError(t, err)
	c2, err := v.Caseless()
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
}

func TestCopyIsIndependent(t *testing.T) {
	v := NewString("orig")
	cp := v.Copy()
	s, _ := cp.Str()
	assert.Equal(t, "orig", s)
	assert.NotSame(t, v, cp)
}
