package store

import (
	"sort"
	"sync"

	"github.com/google/btree"

	"github.com/cuemby/s4/pkg/value"
)

// bucket groups every entry sharing one (key, value) pair on whichever
// side matches that key.
type bucket struct {
	val     *value.Value
	entries map[*Entry]struct{}
}

func bucketLess(a, b *bucket) bool {
	return a.val.Compare(b.val, value.Binary) < 0
}

// Index is a per-key ordered multimap from Value to the set of entries
// sharing that (key, value) pair. BINARY order is the tree's native
// order; CASELESS and COLLATE traversals re-sort snapshot copies of the
// buckets under the requested mode, trading range-scan pushdown for
// those two modes for simplicity.
type Index struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[*bucket]
}

func newIndex() *Index {
	return &Index{tree: btree.NewG(32, bucketLess)}
}

// Insert adds e under val. e is expected to already be the entry whose
// chosen side equals val.
func (idx *Index) Insert(val *value.Value, e *Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	probe := &bucket{val: val}
	if b, ok := idx.tree.Get(probe); ok {
		b.entries[e] = struct{}{}
		return
	}
	b := &bucket{val: val, entries: map[*Entry]struct{}{e: {}}}
	idx.tree.ReplaceOrInsert(b)
}

// Remove removes e from under val, dropping the bucket if it becomes
// empty. Reports whether e was present.
func (idx *Index) Remove(val *value.Value, e *Entry) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	probe := &bucket{val: val}
	b, ok := idx.tree.Get(probe)
	if !ok {
		return false
	}
	if _, present := b.entries[e]; !present {
		return false
	}
	delete(b.entries, e)
	if len(b.entries) == 0 {
		idx.tree.Delete(probe)
	}
	return true
}

// Lookup returns every entry stored under the exact value val (BINARY
// equality).
func (idx *Index) Lookup(val *value.Value) []*Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	b, ok := idx.tree.Get(&bucket{val: val})
	if !ok {
		return nil
	}
	return entrySlice(b.entries)
}

// All returns every entry in the index, each exactly once.
func (idx *Index) All() []*Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []*Entry
	idx.tree.Ascend(func(b *bucket) bool {
		for e := range b.entries {
			out = append(out, e)
		}
		return true
	})
	return out
}

// RangeBinary scans entries whose value falls within [low, high] under
// BINARY order (either bound may be nil for an open end), calling fn for
// each matching entry. fn returning false stops the scan early. This is
// the pushdown path for monotonic BINARY-mode filters.
func (idx *Index) RangeBinary(low, high *value.Value, fn func(*Entry) bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	visit := func(b *bucket) bool {
		if high != nil && b.val.Compare(high, value.Binary) > 0 {
			return false
		}
		for e := range b.entries {
			if !fn(e) {
				return false
			}
		}
		return true
	}

	if low != nil {
		idx.tree.AscendGreaterOrEqual(&bucket{val: low}, visit)
	} else {
		idx.tree.Ascend(visit)
	}
}

// AscendMode calls fn once per (value, entries) bucket in ascending
// order under mode.
func (idx *Index) AscendMode(mode value.Mode, fn func(val *value.Value, entries []*Entry)) {
	idx.mu.RLock()
	buckets := make([]*bucket, 0)
	idx.tree.Ascend(func(b *bucket) bool {
		buckets = append(buckets, b)
		return true
	})
	idx.mu.RUnlock()

	if mode != value.Binary {
		sort.SliceStable(buckets, func(i, j int) bool {
			return buckets[i].val.Compare(buckets[j].val, mode) < 0
		})
	}

	for _, b := range buckets {
		fn(b.val, entrySlice(b.entries))
	}
}

// Len reports the number of distinct values stored in the index.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree.Len()
}

func entrySlice(m map[*Entry]struct{}) []*Entry {
	out := make([]*Entry, 0, len(m))
	for e := range m {
		out = append(out, e)
	}
	return out
}
