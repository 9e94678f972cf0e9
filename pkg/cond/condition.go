package cond

import (
	"strings"

	"github.com/cuemby/s4/pkg/pattern"
	"github.com/cuemby/s4/pkg/sourcepref"
	"github.com/cuemby/s4/pkg/store"
	"github.com/cuemby/s4/pkg/value"
)

// FilterType selects a Filter's predicate.
type FilterType int

const (
	Equal FilterType = iota
	NotEqual
	Greater
	Smaller
	GreaterEq
	SmallerEq
	Match
	Exists
	Token
	Custom
)

// Flags modify a Filter's evaluation.
type Flags uint8

const (
	// Parent evaluates the filter directly against the pivot value
	// instead of joining through another entry sharing the pivot — used
	// to re-test the driver key itself with a second predicate.
	Parent Flags = 1 << iota
)

// Condition is one node of a condition tree: a Filter leaf or a
// Combiner of child Conditions.
type Condition interface {
	bind(s *store.Store) error
	matches(ev *evaluator, pivotKey store.KeyID, pivotVal *value.Value) bool
	driverCandidates(out *[]*Filter)
}

// Filter is a leaf predicate against one key.
type Filter struct {
	Type       FilterType
	Key        string
	Value      *value.Value
	SourcePref *sourcepref.SourcePref
	Mode       value.Mode
	Flags      Flags
	CustomFn   func(candidate *value.Value) bool

	keyID store.KeyID
	pat   *pattern.Pattern
	bound bool
}

// NewFilter builds a Filter. pat is compiled lazily on bind if Type is
// Match and Value holds a string.
func NewFilter(typ FilterType, key string, val *value.Value, sp *sourcepref.SourcePref, mode value.Mode, flags Flags) *Filter {
	return &Filter{Type: typ, Key: key, Value: val, SourcePref: sp, Mode: mode, Flags: flags}
}

func (f *Filter) bind(s *store.Store) error {
	f.keyID = s.InternKey(f.Key)
	if f.Type == Match && f.Value != nil {
		raw, err := f.Value.Str()
		if err == nil {
			p, err := pattern.Compile(raw)
			if err != nil {
				return err
			}
			f.pat = p
		}
	}
	f.bound = true
	return nil
}

// isDriverCandidate reports whether f can serve as the query planner's
// driver: not a Parent re-test, and monotonic
// under its declared mode (only meaningful in value.Binary mode, where
// index order matches comparison order).
func (f *Filter) isDriverCandidate() bool {
	if f.Flags&Parent != 0 {
		return false
	}
	switch f.Type {
	case Equal, Greater, Smaller, GreaterEq, SmallerEq:
		return f.Mode == value.Binary
	default:
		return false
	}
}

func (f *Filter) driverCandidates(out *[]*Filter) {
	if f.isDriverCandidate() {
		*out = append(*out, f)
	}
}

// rangeBounds returns the [low, high] bound this filter imposes for an
// index range scan, or nil, nil for an unbounded side.
func (f *Filter) rangeBounds() (low, high *value.Value) {
	switch f.Type {
	case Equal:
		return f.Value, f.Value
	case Greater:
		return f.Value, nil // exclusivity handled by predicate() during scan
	case GreaterEq:
		return f.Value, nil
	case Smaller:
		return nil, f.Value
	case SmallerEq:
		return nil, f.Value
	default:
		return nil, nil
	}
}

// predicate evaluates f's comparison against a single candidate value.
func (f *Filter) predicate(candidate *value.Value) bool {
	switch f.Type {
	case Equal:
		return candidate.Compare(f.Value, f.Mode) == 0
	case NotEqual:
		return candidate.Compare(f.Value, f.Mode) != 0
	case Greater:
		return candidate.Compare(f.Value, f.Mode) > 0
	case Smaller:
		return candidate.Compare(f.Value, f.Mode) < 0
	case GreaterEq:
		return candidate.Compare(f.Value, f.Mode) >= 0
	case SmallerEq:
		return candidate.Compare(f.Value, f.Mode) <= 0
	case Match:
		s, err := candidate.Str()
		if err != nil || f.pat == nil {
			return false
		}
		return f.pat.Match(s)
	case Token:
		needle, err := candidate.Str()
		if err != nil {
			return false
		}
		hay, err := f.Value.Str()
		if err != nil {
			return false
		}
		return containsToken(hay, needle)
	case Custom:
		if f.CustomFn == nil {
			return false
		}
		return f.CustomFn(candidate)
	default:
		return false
	}
}

func containsToken(haystack, token string) bool {
	for _, field := range strings.Fields(haystack) {
		if field == token {
			return true
		}
	}
	return false
}

// matches resolves f against the pivot, either directly (Parent) or by
// joining to entries elsewhere in the store that share the pivot.
func (f *Filter) matches(ev *evaluator, pivotKey store.KeyID, pivotVal *value.Value) bool {
	// A filter on the same key the pivot is already anchored to (or one
	// explicitly marked Parent) is tested directly against the pivot
	// value; any other key requires joining to entries elsewhere in the
	// store that share this pivot.
	if f.Flags&Parent != 0 || pivotKey == f.keyID {
		if pivotKey != f.keyID {
			return false
		}
		if f.Type == Exists {
			return true
		}
		return f.predicate(pivotVal)
	}

	vals := ev.valuesForKeyLinkedTo(f.keyID, pivotKey, pivotVal, f.SourcePref)
	if f.Type == Exists {
		return len(vals) > 0
	}
	for _, v := range vals {
		if f.predicate(v) {
			return true
		}
	}
	return false
}

// CombinerType selects how a Combiner aggregates its children.
type CombinerType int

const (
	And CombinerType = iota
	Or
	Not
	CustomCombiner
)

// Combiner aggregates child Conditions.
type Combiner struct {
	Type     CombinerType
	Children []Condition
	// CombineFn is used only when Type is CustomCombiner; it receives
	// each child's result in order.
	CombineFn func(results []bool) bool
}

func NewCombiner(typ CombinerType, children ...Condition) *Combiner {
	return &Combiner{Type: typ, Children: children}
}

func (c *Combiner) bind(s *store.Store) error {
	for _, child := range c.Children {
		if err := child.bind(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Combiner) driverCandidates(out *[]*Filter) {
	// A filter's monotonic range only bounds useful candidates when its
	// truth value is taken as written; under Not (or an opaque custom
	// combine function) that no longer holds, so such subtrees are
	// excluded from driver selection and rely on a sibling or the
	// full-scan fallback instead.
	if c.Type == Not || c.Type == CustomCombiner {
		return
	}
	for _, child := range c.Children {
		child.driverCandidates(out)
	}
}

func (c *Combiner) matches(ev *evaluator, pivotKey store.KeyID, pivotVal *value.Value) bool {
	switch c.Type {
	case And:
		for _, child := range c.Children {
			if !child.matches(ev, pivotKey, pivotVal) {
				return false
			}
		}
		return true
	case Or:
		for _, child := range c.Children {
			if child.matches(ev, pivotKey, pivotVal) {
				return true
			}
		}
		return false
	case Not:
		if len(c.Children) != 1 {
			return false
		}
		return !c.Children[0].matches(ev, pivotKey, pivotVal)
	case CustomCombiner:
		if c.CombineFn == nil {
			return false
		}
		results := make([]bool, len(c.Children))
		for i, child := range c.Children {
			results[i] = child.matches(ev, pivotKey, pivotVal)
		}
		return c.CombineFn(results)
	default:
		return false
	}
}

// Bind resolves every Filter's key name to this store's interned id.
// Call it once per store before Eval; conditions are otherwise
// immutable and safe to reuse across queries against the same store.
func Bind(c Condition, s *store.Store) error {
	return c.bind(s)
}
