// Package store implements the relation store: a set of interned
// (key_a, val_a, key_b, val_b, src) quintuples, indexed on both the a
// side and the b side of each key so lookups work in either traversal
// direction.
package store

import (
	"fmt"
	"sync"

	"github.com/cuemby/s4/pkg/value"
)

// KeyID is an interned key name.
type KeyID uint32

// SrcID is an interned source name.
type SrcID uint32

// Entry is one stored quintuple. Entries are never mutated after
// insertion; Del removes the whole entry rather than editing it.
type Entry struct {
	KeyA KeyID
	ValA *value.Value
	KeyB KeyID
	ValB *value.Value
	Src  SrcID
}

// ValueForSide resolves the value entry holds for key, following the
// edge in whichever direction key names. wantB selects which of the
// entry's two key slots is being asked about: false asks "does key sit
// on the a side," true asks "does key sit on the b side." Returns false
// if key matches neither side.
func (e *Entry) ValueForSide(wantB bool, key KeyID) (*value.Value, bool) {
	if !wantB && e.KeyA == key {
		return e.ValA, true
	}
	if wantB && e.KeyB == key {
		return e.ValB, true
	}
	return nil, false
}

// Other returns the key/value pair on the side of e that is not key,
// along with the key name of that other side. Used to walk from a known
// side of an edge to its counterpart, e.g. resolving "artist" from a
// "song_id" entry. ok is false if key matches neither side of e.
func (e *Entry) Other(key KeyID) (otherKey KeyID, otherVal *value.Value, ok bool) {
	switch key {
	case e.KeyA:
		return e.KeyB, e.ValB, true
	case e.KeyB:
		return e.KeyA, e.ValA, true
	default:
		return 0, nil, false
	}
}

func quinKey(ka KeyID, va *value.Value, kb KeyID, vb *value.Value, src SrcID) string {
	as, aerr := va.Str()
	if aerr != nil {
		ai, _ := va.Int()
		as = fmt.Sprintf("#%d", ai)
	}
	bs, berr := vb.Str()
	if berr != nil {
		bi, _ := vb.Int()
		bs = fmt.Sprintf("#%d", bi)
	}
	return fmt.Sprintf("%d\x00%s\x00%d\x00%s\x00%d", ka, as, kb, bs, src)
}

// Store is the relation store: the durable, queryable set of quintuples
// making up a database's facts. It owns the key and source intern
// tables and one two-sided Index per key that has ever been used.
type Store struct {
	mu sync.RWMutex

	keys *intern
	srcs *intern

	// indices maps a KeyID to the index over entries where that key
	// occupies the a side (aIndex) or the b side (bIndex). A key_a ==
	// key_b entry is indexed in both maps for that same key, per
	// SPEC_FULL.md's resolution of duplicate-key quintuples.
	aIndex map[KeyID]*Index
	bIndex map[KeyID]*Index

	quin map[string]*Entry
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		keys:   newIntern(),
		srcs:   newIntern(),
		aIndex: make(map[KeyID]*Index),
		bIndex: make(map[KeyID]*Index),
		quin:   make(map[string]*Entry),
	}
}

// InternKey returns the id for key name s, interning it if new.
func (s *Store) InternKey(name string) KeyID { return KeyID(s.keys.ID(name)) }

// KeyName returns the name interned under id.
func (s *Store) KeyName(id KeyID) (string, bool) { return s.keys.String(uint32(id)) }

// InternSrc returns the id for source name s, interning it if new.
func (s *Store) InternSrc(name string) SrcID { return SrcID(s.srcs.ID(name)) }

// SrcName returns the name interned under id.
func (s *Store) SrcName(id SrcID) (string, bool) { return s.srcs.String(uint32(id)) }

// InternKeyWithID binds name to a specific id, used when replaying a log
// or snapshot that already assigned stable ids.
func (s *Store) InternKeyWithID(id KeyID, name string) { s.keys.Bind(uint32(id), name) }

// InternSrcWithID binds name to a specific id, used when replaying a log
// or snapshot that already assigned stable ids.
func (s *Store) InternSrcWithID(id SrcID, name string) { s.srcs.Bind(uint32(id), name) }

// AllKeys returns every interned key name, ordered by id.
func (s *Store) AllKeys() []string { return s.keys.All() }

// AllSrcs returns every interned source name, ordered by id.
func (s *Store) AllSrcs() []string { return s.srcs.All() }

// KeyCount reports how many distinct key names have been interned.
func (s *Store) KeyCount() int { return len(s.keys.All()) }

// SrcCount reports how many distinct source names have been interned.
func (s *Store) SrcCount() int { return len(s.srcs.All()) }

// Add inserts a quintuple, interning ka/kb/src by name. Reports whether
// a new entry was created; adding an exact duplicate quintuple is a
// no-op that returns the existing entry and false.
func (s *Store) Add(ka string, va *value.Value, kb string, vb *value.Value, src string) (*Entry, bool) {
	kaID := s.InternKey(ka)
	kbID := s.InternKey(kb)
	srcID := s.InternSrc(src)
	return s.AddIDs(kaID, va, kbID, vb, srcID)
}

// AddIDs is Add with already-interned ids, used by log replay and by
// Add itself.
func (s *Store) AddIDs(ka KeyID, va *value.Value, kb KeyID, vb *value.Value, src SrcID) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	qk := quinKey(ka, va, kb, vb, src)
	if existing, ok := s.quin[qk]; ok {
		return existing, false
	}

	e := &Entry{KeyA: ka, ValA: va, KeyB: kb, ValB: vb, Src: src}
	s.quin[qk] = e

	s.indexFor(s.aIndex, ka).Insert(va, e)
	s.indexFor(s.bIndex, kb).Insert(vb, e)
	if ka == kb {
		// A same-key quintuple is also reachable as a "b side" lookup on
		// its own key, and vice versa, per SPEC_FULL.md's resolution.
		s.indexFor(s.bIndex, ka).Insert(va, e)
		s.indexFor(s.aIndex, kb).Insert(vb, e)
	}

	return e, true
}

// Del removes the quintuple matching ka/va/kb/vb/src exactly. Reports
// whether a matching entry was found and removed.
func (s *Store) Del(ka string, va *value.Value, kb string, vb *value.Value, src string) (*Entry, bool) {
	kaID, ok := s.keys.Lookup(ka)
	if !ok {
		return nil, false
	}
	kbID, ok := s.keys.Lookup(kb)
	if !ok {
		return nil, false
	}
	srcID, ok := s.srcs.Lookup(src)
	if !ok {
		return nil, false
	}
	return s.DelIDs(KeyID(kaID), va, KeyID(kbID), vb, SrcID(srcID))
}

// Contains reports whether the exact quintuple (ka, va, kb, vb, src) is
// currently stored, without removing it. Used to validate a pending
// delete before it is durably logged.
func (s *Store) Contains(ka KeyID, va *value.Value, kb KeyID, vb *value.Value, src SrcID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.quin[quinKey(ka, va, kb, vb, src)]
	return ok
}

// DelIDs is Del with already-interned ids.
func (s *Store) DelIDs(ka KeyID, va *value.Value, kb KeyID, vb *value.Value, src SrcID) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	qk := quinKey(ka, va, kb, vb, src)
	e, ok := s.quin[qk]
	if !ok {
		return nil, false
	}
	delete(s.quin, qk)

	if idx, ok := s.aIndex[ka]; ok {
		idx.Remove(va, e)
	}
	if idx, ok := s.bIndex[kb]; ok {
		idx.Remove(vb, e)
	}
	if ka == kb {
		if idx, ok := s.bIndex[ka]; ok {
			idx.Remove(va, e)
		}
		if idx, ok := s.aIndex[kb]; ok {
			idx.Remove(vb, e)
		}
	}

	return e, true
}

func (s *Store) indexFor(m map[KeyID]*Index, key KeyID) *Index {
	idx, ok := m[key]
	if !ok {
		idx = newIndex()
		m[key] = idx
	}
	return idx
}

// AIndex returns the index over entries where key occupies the a side,
// creating it empty if key has never been used. The returned Index must
// not be mutated directly; use Add/Del.
func (s *Store) AIndex(key KeyID) *Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexFor(s.aIndex, key)
}

// BIndex returns the index over entries where key occupies the b side.
func (s *Store) BIndex(key KeyID) *Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexFor(s.bIndex, key)
}

// EntriesForKey returns every entry touching key on either side, each
// entry appearing once even if key sits on both sides.
func (s *Store) EntriesForKey(key KeyID) []*Entry {
	s.mu.RLock()
	aIdx, aOK := s.aIndex[key]
	bIdx, bOK := s.bIndex[key]
	s.mu.RUnlock()

	seen := make(map[*Entry]struct{})
	var out []*Entry
	if aOK {
		for _, e := range aIdx.All() {
			if _, dup := seen[e]; !dup {
				seen[e] = struct{}{}
				out = append(out, e)
			}
		}
	}
	if bOK {
		for _, e := range bIdx.All() {
			if _, dup := seen[e]; !dup {
				seen[e] = struct{}{}
				out = append(out, e)
			}
		}
	}
	return out
}

// Len reports the number of distinct quintuples stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.quin)
}

// All returns every stored entry, in no particular order.
func (s *Store) All() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entry, 0, len(s.quin))
	for _, e := range s.quin {
		out = append(out, e)
	}
	return out
}
