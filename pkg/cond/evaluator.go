package cond

import (
	"fmt"

	"github.com/cuemby/s4/pkg/sourcepref"
	"github.com/cuemby/s4/pkg/store"
	"github.com/cuemby/s4/pkg/value"
)

// Pivot identifies one surviving "object": the (key, value) pair that
// anchored a driver match, e.g. a song_id and its value.
type Pivot struct {
	Key store.KeyID
	Val *value.Value
}

type evaluator struct {
	s *store.Store
}

// Eval runs c against s, returning every distinct pivot that satisfies
// the whole tree. c must already be bound to s via Bind.
func Eval(c Condition, s *store.Store) []Pivot {
	ev := &evaluator{s: s}

	driver, monotonic := chooseDriver(c, s)
	if driver == nil {
		return nil
	}

	seen := make(map[string]Pivot)
	var low, high *value.Value
	if monotonic {
		low, high = driver.rangeBounds()
	}

	consider := func(e *store.Entry) bool {
		ownVal, ok := sideValue(e, driver.keyID)
		if !ok {
			return true
		}
		// The driver's own predicate only pre-filters candidates when it
		// was chosen as a genuine monotonic driver; a fallback (full
		// scan) driver's literal predicate may sit under a Not or custom
		// combiner and is left entirely to the recursive c.matches call.
		if monotonic && driver.Type != Exists && !driver.predicate(ownVal) {
			return true
		}
		if !c.matches(ev, driver.keyID, ownVal) {
			return true
		}
		key := pivotDedupKey(driver.keyID, ownVal)
		if _, dup := seen[key]; !dup {
			seen[key] = Pivot{Key: driver.keyID, Val: ownVal}
		}
		return true
	}

	if low != nil || high != nil {
		s.AIndex(driver.keyID).RangeBinary(low, high, consider)
		s.BIndex(driver.keyID).RangeBinary(low, high, consider)
	} else {
		for _, e := range s.EntriesForKey(driver.keyID) {
			consider(e)
		}
	}

	out := make([]Pivot, 0, len(seen))
	for _, p := range seen {
		out = append(out, p)
	}
	return out
}

// chooseDriver picks the filter to scan first: a monotonic candidate
// with the smallest combined index size if any exist, otherwise any
// filter at all (degrading to a full index scan). The bool result
// reports whether the chosen filter's own predicate may be trusted to
// pre-restrict candidates (true only for a genuine monotonic driver).
func chooseDriver(c Condition, s *store.Store) (*Filter, bool) {
	var monotonic []*Filter
	c.driverCandidates(&monotonic)
	if len(monotonic) > 0 {
		return smallestIndexed(monotonic, s), true
	}

	var all []*Filter
	collectAllFilters(c, &all)
	if len(all) == 0 {
		return nil, false
	}
	return smallestIndexed(all, s), false
}

func smallestIndexed(filters []*Filter, s *store.Store) *Filter {
	best := filters[0]
	bestSize := s.AIndex(best.keyID).Len() + s.BIndex(best.keyID).Len()
	for _, f := range filters[1:] {
		size := s.AIndex(f.keyID).Len() + s.BIndex(f.keyID).Len()
		if size < bestSize {
			best, bestSize = f, size
		}
	}
	return best
}

func collectAllFilters(c Condition, out *[]*Filter) {
	switch n := c.(type) {
	case *Filter:
		*out = append(*out, n)
	case *Combiner:
		for _, child := range n.Children {
			collectAllFilters(child, out)
		}
	}
}

func sideValue(e *store.Entry, keyID store.KeyID) (*value.Value, bool) {
	if e.KeyA == keyID {
		return e.ValA, true
	}
	if e.KeyB == keyID {
		return e.ValB, true
	}
	return nil, false
}

func pivotDedupKey(key store.KeyID, val *value.Value) string {
	if s, err := val.Str(); err == nil {
		return fmt.Sprintf("%d\x00s%s", key, s)
	}
	i, _ := val.Int()
	return fmt.Sprintf("%d\x00i%d", key, i)
}

// valuesForKeyLinkedTo returns the own-side values of every entry
// having keyID on one side and (pivotKey, pivotVal) on the other,
// restricted to the entries whose source has the best (numerically
// lowest) priority under sp among all such entries.
func (ev *evaluator) valuesForKeyLinkedTo(keyID, pivotKey store.KeyID, pivotVal *value.Value, sp *sourcepref.SourcePref) []*value.Value {
	entries := ev.s.EntriesForKey(keyID)

	type hit struct {
		val      *value.Value
		priority int
	}
	var hits []hit
	best := sourcepref.Worst

	for _, e := range entries {
		otherKey, otherVal, ok := e.Other(keyID)
		if !ok || otherKey != pivotKey || !otherVal.Equal(pivotVal) {
			continue
		}
		ownVal, ok := sideValue(e, keyID)
		if !ok {
			continue
		}
		srcName, _ := ev.s.SrcName(e.Src)
		p := sp.Priority(srcName)
		hits = append(hits, hit{val: ownVal, priority: p})
		if p < best {
			best = p
		}
	}

	var out []*value.Value
	for _, h := range hits {
		if h.priority == best {
			out = append(out, h.val)
		}
	}
	return out
}
