package value

import (
	"errors"
	"sync"

	"github.com/cuemby/s4/pkg/collate"
)

// ErrWrongType is returned when a string-only accessor is called on an
// int value, or vice versa.
var ErrWrongType = errors.New("value: wrong type")

// Mode selects how two values compare.
type Mode int

const (
	// Binary compares strings byte by byte.
	Binary Mode = iota
	// Caseless compares case-folded forms of strings.
	Caseless
	// Collate compares locale-collated keys.
	Collate
)

type kind int

const (
	kindString kind = iota
	kindInt
)

// Value is s4's tagged string-or-int variant. The zero Value is not
// valid; use NewString or NewInt. A Value's lazily-computed caseless and
// collated forms are cached after first use and are safe to read
// concurrently.
type Value struct {
	kind kind
	str  string
	i    int32

	once     sync.Once
	caseless string
	collated []byte
}

// NewString constructs a string value.
func NewString(s string) *Value {
	return &Value{kind: kindString, str: s}
}

// NewInt constructs an int value.
func NewInt(i int32) *Value {
	return &Value{kind: kindInt, i: i}
}

// Copy returns a deep, independent copy of v. The copy does not share
// v's lazily-cached normalized forms; they are recomputed on demand.
func (v *Value) Copy() *Value {
	switch v.kind {
	case kindInt:
		return NewInt(v.i)
	default:
		return NewString(v.str)
	}
}

// IsString reports whether v holds a string.
func (v *Value) IsString() bool { return v.kind == kindString }

// IsInt reports whether v holds an int.
func (v *Value) IsInt() bool { return v.kind == kindInt }

// Str returns v's string, or ErrWrongType if v holds an int.
func (v *Value) Str() (string, error) {
	if v.kind != kindString {
		return "", ErrWrongType
	}
	return v.str, nil
}

// Int returns v's int, or ErrWrongType if v holds a string.
func (v *Value) Int() (int32, error) {
	if v.kind != kindInt {
		return 0, ErrWrongType
	}
	return v.i, nil
}

// ensureNormalized computes and caches the caseless and collated forms,
// at most once, the first time either is needed.
func (v *Value) ensureNormalized() {
	v.once.Do(func() {
		v.caseless = collate.Caseless(v.str)
		v.collated = collate.Key(v.str)
	})
}

// Caseless returns the case-folded form of v's string, or ErrWrongType
// if v holds an int.
func (v *Value) Caseless() (string, error) {
	if v.kind != kindString {
		return "", ErrWrongType
	}
	v.ensureNormalized()
	return v.caseless, nil
}

// Collated returns the locale-collated sort key of v's string, or
// ErrWrongType if v holds an int.
func (v *Value) Collated() ([]byte, error) {
	if v.kind != kindString {
		return nil, ErrWrongType
	}
	v.ensureNormalized()
	return v.collated, nil
}

// Equal reports type-exact equality: an int and a string are never
// equal, regardless of value.
func (v *Value) Equal(other *Value) bool {
	return v.Compare(other, Binary) == 0
}

// Compare orders v relative to other under mode. Integers order before
// strings; when both sides are the same type, ordering follows mode for
// strings and numeric order for ints.
func (v *Value) Compare(other *Value, mode Mode) int {
	if v.kind != other.kind {
		if v.kind == kindInt {
			return -1
		}
		return 1
	}

	if v.kind == kindInt {
		switch {
		case v.i < other.i:
			return -1
		case v.i > other.i:
			return 1
		default:
			return 0
		}
	}

	switch mode {
	case Caseless:
		a, _ := v.Caseless()
		b, _ := other.Caseless()
		return compareStrings(a, b)
	case Collate:
		a, _ := v.Collated()
		b, _ := other.Collated()
		return compareBytes(a, b)
	default:
		return compareStrings(v.str, other.str)
	}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
