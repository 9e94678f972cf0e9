package txn

import (
	"github.com/cuemby/s4/pkg/cond"
	"github.com/cuemby/s4/pkg/errs"
	"github.com/cuemby/s4/pkg/fetch"
	"github.com/cuemby/s4/pkg/log"
	"github.com/cuemby/s4/pkg/store"
	"github.com/cuemby/s4/pkg/value"
)

// Flags modify how a transaction is begun.
type Flags uint8

const (
	// ReadOnly transactions never stage writes; Add and Del return
	// errs.ReadOnly. They never acquire write intents and so can never
	// take part in a deadlock.
	ReadOnly Flags = 1 << iota
)

type state int

const (
	stateActive state = iota
	stateCommitted
	stateAborted
)

// pendingOp is one buffered write, identified by already-interned ids
// so commit never needs to re-resolve names.
type pendingOp struct {
	KeyA store.KeyID
	ValA *value.Value
	KeyB store.KeyID
	ValB *value.Value
	Src  store.SrcID
}

func sameOp(e *store.Entry, op pendingOp) bool {
	return e.KeyA == op.KeyA && e.KeyB == op.KeyB && e.Src == op.Src &&
		e.ValA.Equal(op.ValA) && e.ValB.Equal(op.ValB)
}

// Txn is one transaction: a sequence of buffered reads and writes that
// commits or aborts as a unit. The zero Txn is not valid; obtain one
// from Manager.Begin.
type Txn struct {
	id    uint64
	flags Flags
	state state
	mgr   *Manager

	pendingInserts []pendingOp
	pendingDeletes []pendingOp
}

// ID returns the transaction's monotonic id, assigned at Begin.
func (t *Txn) ID() uint64 { return t.id }

// ReadOnly reports whether t was begun with the ReadOnly flag.
func (t *Txn) ReadOnly() bool { return t.flags&ReadOnly != 0 }

func (t *Txn) checkWritable(op string) error {
	if t.flags&ReadOnly != 0 {
		return errs.New(op, errs.ReadOnly, nil)
	}
	if t.state != stateActive {
		return errs.New(op, errs.Deadlock, nil)
	}
	return nil
}

// Add stages an insert of (ka, va, kb, vb, src) into t's write buffer.
// The quintuple becomes visible to t's own Query calls immediately but
// is invisible to every other transaction, and to the shared store,
// until Commit succeeds.
func (t *Txn) Add(ka string, va *value.Value, kb string, vb *value.Value, src string) error {
	if err := t.checkWritable("add"); err != nil {
		return err
	}
	kaID := t.mgr.store.InternKey(ka)
	kbID := t.mgr.store.InternKey(kb)
	srcID := t.mgr.store.InternSrc(src)

	if err := t.mgr.acquireIntent(t, pairKey{a: kaID, b: kbID}); err != nil {
		return err
	}

	t.pendingInserts = append(t.pendingInserts, pendingOp{KeyA: kaID, ValA: va, KeyB: kbID, ValB: vb, Src: srcID})
	return nil
}

// Del stages a removal of (ka, va, kb, vb, src). Del itself only
// buffers the removal; if the quintuple does not exist at commit time
// (and was not inserted earlier in the same transaction), Commit fails
// the whole transaction with errs.Execute rather than silently
// dropping the delete.
func (t *Txn) Del(ka string, va *value.Value, kb string, vb *value.Value, src string) error {
	if err := t.checkWritable("del"); err != nil {
		return err
	}
	kaID := t.mgr.store.InternKey(ka)
	kbID := t.mgr.store.InternKey(kb)
	srcID := t.mgr.store.InternSrc(src)

	if err := t.mgr.acquireIntent(t, pairKey{a: kaID, b: kbID}); err != nil {
		return err
	}

	t.pendingDeletes = append(t.pendingDeletes, pendingOp{KeyA: kaID, ValA: va, KeyB: kbID, ValB: vb, Src: srcID})
	return nil
}

// Query runs c against the database as t would see it: committed state
// with t's own pending inserts added and its own pending deletes
// removed, independent of any other transaction's uncommitted writes.
func (t *Txn) Query(c cond.Condition, fs *fetch.FetchSpec) ([]fetch.Row, error) {
	if t.state == stateAborted {
		return nil, errs.New("query", errs.Deadlock, nil)
	}
	view := t.overlay()

	if err := cond.Bind(c, view); err != nil {
		return nil, errs.New("query", errs.Incons, err)
	}
	fs.Bind(view)

	pivots := cond.Eval(c, view)
	return fetch.Run(pivots, view, fs), nil
}

// overlay builds a throwaway Store holding committed state plus t's
// own pending writes, preserving every intern id exactly so a
// Condition or FetchSpec already bound to the shared store remains
// valid when bound again to the overlay.
func (t *Txn) overlay() *store.Store {
	shared := t.mgr.store
	view := store.New()

	for id, name := range shared.AllKeys() {
		view.InternKeyWithID(store.KeyID(id), name)
	}
	for id, name := range shared.AllSrcs() {
		view.InternSrcWithID(store.SrcID(id), name)
	}

	if len(t.pendingDeletes) == 0 {
		for _, e := range shared.All() {
			view.AddIDs(e.KeyA, e.ValA, e.KeyB, e.ValB, e.Src)
		}
	} else {
	entries:
		for _, e := range shared.All() {
			for _, d := range t.pendingDeletes {
				if sameOp(e, d) {
					continue entries
				}
			}
			view.AddIDs(e.KeyA, e.ValA, e.KeyB, e.ValB, e.Src)
		}
	}

	for _, ins := range t.pendingInserts {
		view.AddIDs(ins.KeyA, ins.ValA, ins.KeyB, ins.ValB, ins.Src)
	}
	return view
}

// Commit flushes t's buffered writes to the log under one COMMIT
// marker and applies them to the shared store. On success t is
// Committed and its write intents are released; on failure t remains
// Active and may be retried or aborted.
func (t *Txn) Commit() error {
	t.mgr.mu.Lock()
	defer t.mgr.mu.Unlock()

	if t.state != stateActive {
		return errs.New("commit", errs.Deadlock, nil)
	}

	if err := t.mgr.commitLocked(t); err != nil {
		return err
	}
	t.state = stateCommitted
	log.WithTxID(t.id).Debug().
		Int("inserts", len(t.pendingInserts)).
		Int("deletes", len(t.pendingDeletes)).
		Msg("transaction committed")
	return nil
}

// Abort discards t's buffered writes and releases its write intents
// without touching the shared store.
func (t *Txn) Abort() {
	t.mgr.mu.Lock()
	defer t.mgr.mu.Unlock()

	if t.state != stateActive {
		return
	}
	t.mgr.abortLocked(t.id)
	t.state = stateAborted
}
