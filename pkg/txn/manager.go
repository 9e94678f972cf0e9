package txn

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sasha-s/go-deadlock"

	"github.com/cuemby/s4/pkg/errs"
	"github.com/cuemby/s4/pkg/log"
	"github.com/cuemby/s4/pkg/store"
	"github.com/cuemby/s4/pkg/walog"
)

// Manager owns the shared store and log and arbitrates every
// transaction begun against them. One Manager per open database.
type Manager struct {
	mu   deadlock.Mutex
	cond *sync.Cond

	store *store.Store
	log   *walog.Log

	nextID uint64
	active map[uint64]*Txn

	// intents maps a "key_a-key_b" pair to the id of the transaction
	// currently holding write intent on it.
	intents map[pairKey]uint64
	// waitsFor records, for a blocked transaction, the set of
	// transactions holding an intent it wants.
	waitsFor map[uint64]map[uint64]struct{}

	commits   uint64
	aborts    uint64
	deadlocks uint64

	// loggedKeys and loggedSrcs record which interned ids already have a
	// durable binding, either because a snapshot captured them or this
	// session already wrote their StringInsert record. An id newly
	// interned by a transaction's Add/Del is not in either set until its
	// commit logs one.
	loggedKeys map[store.KeyID]struct{}
	loggedSrcs map[store.SrcID]struct{}
}

// Stats is a point-in-time snapshot of a Manager's lifetime counters,
// polled by pkg/metrics rather than pushed.
type Stats struct {
	Active    int
	Commits   uint64
	Aborts    uint64
	Deadlocks uint64
}

// Stats returns the manager's current counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Active:    len(m.active),
		Commits:   atomic.LoadUint64(&m.commits),
		Aborts:    atomic.LoadUint64(&m.aborts),
		Deadlocks: atomic.LoadUint64(&m.deadlocks),
	}
}

type pairKey struct {
	a, b store.KeyID
}

// NewManager builds a Manager over an already-open store and log. Every
// key and source already present in s (recovered from a snapshot and
// replayed log records, or pre-interned by Open's knownKeys) is treated
// as already durable, since knownKeys is deterministically re-supplied
// on every Open and needs no log record of its own.
func NewManager(s *store.Store, l *walog.Log) *Manager {
	m := &Manager{
		store:      s,
		log:        l,
		active:     make(map[uint64]*Txn),
		intents:    make(map[pairKey]uint64),
		waitsFor:   make(map[uint64]map[uint64]struct{}),
		loggedKeys: make(map[store.KeyID]struct{}),
		loggedSrcs: make(map[store.SrcID]struct{}),
	}
	for id, name := range s.AllKeys() {
		if name != "" {
			m.loggedKeys[store.KeyID(id)] = struct{}{}
		}
	}
	for id, name := range s.AllSrcs() {
		if name != "" {
			m.loggedSrcs[store.SrcID(id)] = struct{}{}
		}
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Begin starts a new transaction. A read-only transaction never
// acquires write intents and its Add/Del calls fail with errs.ReadOnly.
func (m *Manager) Begin(flags Flags) *Txn {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	t := &Txn{
		id:    m.nextID,
		flags: flags,
		state: stateActive,
		mgr:   m,
	}
	m.active[t.id] = t
	return t
}

// acquireIntent blocks the caller until it holds write intent on key,
// aborting the youngest transaction in any waits-for cycle it would
// otherwise complete. Returns errs.Deadlock if owner itself is the
// victim chosen to break the cycle.
func (m *Manager) acquireIntent(owner *Txn, key pairKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		holder, held := m.intents[key]
		if !held || holder == owner.id {
			m.intents[key] = owner.id
			delete(m.waitsFor, owner.id)
			return nil
		}

		if m.waitsFor[owner.id] == nil {
			m.waitsFor[owner.id] = make(map[uint64]struct{})
		}
		m.waitsFor[owner.id][holder] = struct{}{}

		if victim, ok := m.findCycle(owner.id); ok {
			log.WithComponent("txn").Warn().
				Uint64("victim", victim).Msg("aborting youngest transaction in waits-for cycle")
			atomic.AddUint64(&m.deadlocks, 1)
			m.abortLocked(victim)
			if victim == owner.id {
				return errs.New("commit", errs.Deadlock, nil)
			}
			// The victim released every intent it held; retry without
			// waiting since the cycle that blocked us is now gone.
			continue
		}

		m.cond.Wait()
		if owner.state == stateAborted {
			return errs.New("commit", errs.Deadlock, nil)
		}
	}
}

// findCycle does a depth-first walk of the waits-for graph starting
// from start, reporting the youngest (highest id) transaction on any
// cycle it finds back to start.
func (m *Manager) findCycle(start uint64) (uint64, bool) {
	visited := make(map[uint64]bool)
	var path []uint64

	var walk func(id uint64) (uint64, bool)
	walk = func(id uint64) (uint64, bool) {
		if id == start && len(path) > 0 {
			youngest := start
			for _, p := range path {
				if p > youngest {
					youngest = p
				}
			}
			return youngest, true
		}
		if visited[id] {
			return 0, false
		}
		visited[id] = true
		path = append(path, id)
		for next := range m.waitsFor[id] {
			if v, ok := walk(next); ok {
				return v, true
			}
		}
		path = path[:len(path)-1]
		return 0, false
	}

	for next := range m.waitsFor[start] {
		if v, ok := walk(next); ok {
			return v, true
		}
	}
	return 0, false
}

// releaseIntents frees every intent owner holds and wakes blocked
// waiters. Called under m.mu.
func (m *Manager) releaseIntents(owner uint64) {
	for key, holder := range m.intents {
		if holder == owner {
			delete(m.intents, key)
		}
	}
	delete(m.waitsFor, owner)
	for _, waiting := range m.waitsFor {
		delete(waiting, owner)
	}
	m.cond.Broadcast()
}

// abortLocked marks id Aborted and releases its intents. Called under
// m.mu, either by the transaction's own Abort or by the manager
// breaking a deadlock cycle.
func (m *Manager) abortLocked(id uint64) {
	if t, ok := m.active[id]; ok {
		t.state = stateAborted
		t.pendingInserts = nil
		t.pendingDeletes = nil
	}
	atomic.AddUint64(&m.aborts, 1)
	m.releaseIntents(id)
	delete(m.active, id)
}

// commitLocked appends t's writes to the log under one COMMIT marker
// and applies them to the store. Called under m.mu so commits from
// distinct transactions cannot interleave.
func (m *Manager) commitLocked(t *Txn) error {
	for _, del := range t.pendingDeletes {
		if !m.deletePending(t, del) {
			return errs.New("commit", errs.Execute, fmt.Errorf("del of absent quintuple (key_a=%d, key_b=%d, src=%d)", del.KeyA, del.KeyB, del.Src))
		}
	}

	// m.log is nil for a MEMORY-flagged database, which has no redo log
	// to make writes durable against; its writes only ever land in the
	// in-process store.
	if m.log != nil {
		// Any key or source this transaction newly interned has no
		// durable binding yet; log it before the PairInsert/PairRemove
		// records that reference its id, so replay after a crash can
		// resolve that id back to a name instead of leaving it orphaned.
		bindings := m.newBindings(t)
		for _, rec := range bindings {
			if err := m.log.StringInsert(rec.Table, rec.ID, rec.Str); err != nil {
				return errs.New("commit", errs.LogFull, err)
			}
		}

		for _, ins := range t.pendingInserts {
			if err := m.log.PairInsert(walog.PairChange{
				KeyA: uint32(ins.KeyA), ValA: ins.ValA,
				KeyB: uint32(ins.KeyB), ValB: ins.ValB,
				Src: uint32(ins.Src),
			}); err != nil {
				return errs.New("commit", errs.LogFull, err)
			}
		}
		for _, del := range t.pendingDeletes {
			if err := m.log.PairRemove(walog.PairChange{
				KeyA: uint32(del.KeyA), ValA: del.ValA,
				KeyB: uint32(del.KeyB), ValB: del.ValB,
				Src: uint32(del.Src),
			}); err != nil {
				return errs.New("commit", errs.LogFull, err)
			}
		}
		if err := m.log.Commit(); err != nil {
			return errs.New("commit", errs.LogFull, err)
		}

		for _, rec := range bindings {
			switch rec.Table {
			case walog.TableKeys:
				m.loggedKeys[store.KeyID(rec.ID)] = struct{}{}
			case walog.TableSrcs:
				m.loggedSrcs[store.SrcID(rec.ID)] = struct{}{}
			}
		}
	}

	for _, ins := range t.pendingInserts {
		if _, _, err := addAndMaybeIntern(m.store, ins); err != nil {
			return errs.New("commit", errs.Execute, err)
		}
	}
	for _, del := range t.pendingDeletes {
		if _, ok := m.store.DelIDs(del.KeyA, del.ValA, del.KeyB, del.ValB, del.Src); !ok {
			return errs.New("commit", errs.Execute, fmt.Errorf("del of absent quintuple (key_a=%d, key_b=%d, src=%d)", del.KeyA, del.KeyB, del.Src))
		}
	}

	atomic.AddUint64(&m.commits, 1)
	m.releaseIntents(t.id)
	delete(m.active, t.id)
	return nil
}

// addAndMaybeIntern applies a buffered insert to s. Keys and sources
// were already interned when the op was staged, so this never fails;
// the error return exists for symmetry with callers that check it.
func addAndMaybeIntern(s *store.Store, op pendingOp) (store.KeyID, store.KeyID, error) {
	s.AddIDs(op.KeyA, op.ValA, op.KeyB, op.ValB, op.Src)
	return op.KeyA, op.KeyB, nil
}

// newBindings returns the StringInsert records needed to durably bind
// every key and source id t's pending inserts reference but that
// neither a prior commit nor the loaded snapshot has logged yet. Order
// follows first use in t.pendingInserts; duplicates are collapsed.
func (m *Manager) newBindings(t *Txn) []walog.StringInsert {
	var recs []walog.StringInsert
	seenKeys := make(map[store.KeyID]struct{})
	seenSrcs := make(map[store.SrcID]struct{})

	addKey := func(id store.KeyID) {
		if _, ok := m.loggedKeys[id]; ok {
			return
		}
		if _, ok := seenKeys[id]; ok {
			return
		}
		seenKeys[id] = struct{}{}
		if name, ok := m.store.KeyName(id); ok {
			recs = append(recs, walog.StringInsert{Table: walog.TableKeys, ID: uint32(id), Str: name})
		}
	}
	addSrc := func(id store.SrcID) {
		if _, ok := m.loggedSrcs[id]; ok {
			return
		}
		if _, ok := seenSrcs[id]; ok {
			return
		}
		seenSrcs[id] = struct{}{}
		if name, ok := m.store.SrcName(id); ok {
			recs = append(recs, walog.StringInsert{Table: walog.TableSrcs, ID: uint32(id), Str: name})
		}
	}

	for _, ins := range t.pendingInserts {
		addKey(ins.KeyA)
		addKey(ins.KeyB)
		addSrc(ins.Src)
	}
	return recs
}

// deletePending reports whether del targets a quintuple that will
// actually exist by the time deletes are applied: either already in
// the shared store, or staged for insertion earlier in the same
// transaction. Checked before anything is written to the log so a
// delete of a quintuple that was never there fails the whole commit
// instead of logging a COMMIT marker for writes that won't all apply.
func (m *Manager) deletePending(t *Txn, del pendingOp) bool {
	if m.store.Contains(del.KeyA, del.ValA, del.KeyB, del.ValB, del.Src) {
		return true
	}
	for _, ins := range t.pendingInserts {
		if ins.KeyA == del.KeyA && ins.KeyB == del.KeyB && ins.Src == del.Src &&
			ins.ValA.Equal(del.ValA) && ins.ValB.Equal(del.ValB) {
			return true
		}
	}
	return false
}
