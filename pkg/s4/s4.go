package s4

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/cuemby/s4/pkg/errs"
	"github.com/cuemby/s4/pkg/log"
	"github.com/cuemby/s4/pkg/store"
	"github.com/cuemby/s4/pkg/txn"
	"github.com/cuemby/s4/pkg/value"
	"github.com/cuemby/s4/pkg/walog"
)

// Flags combine to select Open's behavior.
type Flags uint8

const (
	// New requires that the database not already exist; Open fails
	// with errs.Exists if it does.
	New Flags = 1 << iota
	// Exists requires that the database already exist; Open fails with
	// errs.NoEnt if it does not.
	Exists
	// Memory creates a purely in-memory database: no log file, no
	// on-disk snapshot, discarded entirely on Close.
	Memory
)

const logSuffix = ".log"

// DB is one open database: a store, optionally backed by a redo log
// and on-disk snapshot, and the transaction manager arbitrating access
// to it.
type DB struct {
	mu sync.Mutex

	path   string
	memory bool

	store *store.Store
	log   *walog.Log
	mgr   *txn.Manager
	id    uuid.UUID

	// lastErr mirrors s4_errno's global last-error slot for callers
	// migrating code that polled it instead of checking a return value.
	// Only Sync and Close record into it.
	lastErr atomic.Value
}

// Open opens or creates the database at path. knownKeys are interned
// up front so well-known columns keep stable ids across opens even
// before anything using them is queried.
func Open(path string, knownKeys []string, flags Flags) (*DB, error) {
	if flags&Memory != 0 {
		s := store.New()
		for _, k := range knownKeys {
			s.InternKey(k)
		}
		db := &DB{path: path, memory: true, store: s, id: uuid.New(), mgr: txn.NewManager(s, nil)}
		log.WithComponent("s4").Debug().Str("uuid", db.id.String()).Msg("opened in-memory database")
		return db, nil
	}

	_, statErr := os.Stat(path)
	exists := statErr == nil
	if !exists && !errors.Is(statErr, os.ErrNotExist) {
		return nil, setErr(nil, errs.New("open", errs.Open, statErr))
	}
	if flags&New != 0 && exists {
		return nil, errs.New("open", errs.Exists, nil)
	}
	if flags&Exists != 0 && !exists {
		return nil, errs.New("open", errs.NoEnt, nil)
	}

	s, loadErr := walog.LoadSnapshot(path)
	if loadErr != nil {
		if errors.Is(loadErr, walog.ErrVersion) {
			return nil, errs.New("open", errs.Version, loadErr)
		}
		return nil, errs.New("open", errs.Incons, loadErr)
	}
	for _, k := range knownKeys {
		s.InternKey(k)
	}

	id, hasID, idErr := walog.ReadMetaUUID(path)
	if idErr != nil {
		return nil, errs.New("open", errs.Incons, idErr)
	}
	if !hasID {
		id = uuid.New()
		if err := walog.WriteMetaUUID(path, id); err != nil {
			return nil, errs.New("open", errs.Open, err)
		}
	}

	l, err := walog.Open(path + logSuffix)
	if err != nil {
		return nil, errs.New("open", errs.LogOpen, err)
	}

	replayErr := walog.Replay(path+logSuffix, &storeSink{s: s})
	if replayErr != nil {
		_ = l.Close()
		return nil, errs.New("open", errs.LogRedo, replayErr)
	}

	db := &DB{path: path, store: s, log: l, mgr: txn.NewManager(s, l), id: uuid.UUID(id)}
	log.WithComponent("s4").Debug().Str("path", path).Str("uuid", db.id.String()).Msg("opened database")
	return db, nil
}

// storeSink applies replayed log records directly to a store, used
// only during Open's recovery pass.
type storeSink struct{ s *store.Store }

func (sink *storeSink) StringInsert(rec walog.StringInsert) {
	switch rec.Table {
	case walog.TableKeys:
		sink.s.InternKeyWithID(store.KeyID(rec.ID), rec.Str)
	case walog.TableSrcs:
		sink.s.InternSrcWithID(store.SrcID(rec.ID), rec.Str)
	}
}

func (sink *storeSink) PairInsert(pc walog.PairChange) {
	sink.s.AddIDs(store.KeyID(pc.KeyA), pc.ValA, store.KeyID(pc.KeyB), pc.ValB, store.SrcID(pc.Src))
}

func (sink *storeSink) PairRemove(pc walog.PairChange) {
	sink.s.DelIDs(store.KeyID(pc.KeyA), pc.ValA, store.KeyID(pc.KeyB), pc.ValB, store.SrcID(pc.Src))
}

// UUID returns the database's persistent identifier.
func (db *DB) UUID() uuid.UUID { return db.id }

// Fact is one stored quintuple with its key and source ids resolved
// back to names, for inspection by callers outside the store package.
type Fact struct {
	KeyA, KeyB string
	ValA, ValB *value.Value
	Src        string
}

// Len reports the number of distinct quintuples stored.
func (db *DB) Len() int { return db.store.Len() }

// KeyCount reports how many distinct key names have been interned.
func (db *DB) KeyCount() int { return db.store.KeyCount() }

// SrcCount reports how many distinct source names have been interned.
func (db *DB) SrcCount() int { return db.store.SrcCount() }

// TxnStats returns a point-in-time snapshot of the transaction
// manager's lifetime counters, for pkg/metrics to poll.
func (db *DB) TxnStats() txn.Stats { return db.mgr.Stats() }

// Facts returns every quintuple currently in the database, in no
// particular order.
func (db *DB) Facts() []Fact {
	entries := db.store.All()
	out := make([]Fact, len(entries))
	for i, e := range entries {
		ka, _ := db.store.KeyName(e.KeyA)
		kb, _ := db.store.KeyName(e.KeyB)
		src, _ := db.store.SrcName(e.Src)
		out[i] = Fact{KeyA: ka, ValA: e.ValA, KeyB: kb, ValB: e.ValB, Src: src}
	}
	return out
}

// Begin starts a transaction against db. See package txn for
// Add/Del/Query/Commit/Abort.
func (db *DB) Begin(flags txn.Flags) *txn.Txn {
	return db.mgr.Begin(flags)
}

// Sync writes a fresh on-disk snapshot of the store and truncates the
// redo log, since every record in it is now reflected in the
// snapshot. A MEMORY database has nothing to sync and Sync is a no-op.
func (db *DB) Sync() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.memory {
		return nil
	}
	if err := walog.Snapshot(db.path, db.store); err != nil {
		return setErr(db, errs.New("sync", errs.Open, err))
	}
	if err := db.log.Truncate(); err != nil {
		return setErr(db, errs.New("sync", errs.LogFull, err))
	}
	log.WithComponent("s4").Debug().Str("path", db.path).Msg("synced snapshot and truncated log")
	return nil
}

// Close syncs (for an on-disk database) and releases the log's
// exclusive lock. Transactions still Active when Close is called are
// not aborted; their buffered writes are simply never committed.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.memory {
		return nil
	}
	if err := walog.Snapshot(db.path, db.store); err != nil {
		return setErr(db, errs.New("close", errs.Open, err))
	}
	if err := db.log.Truncate(); err != nil {
		return setErr(db, errs.New("close", errs.LogFull, err))
	}
	if err := db.log.Close(); err != nil {
		return setErr(db, errs.New("close", errs.Open, err))
	}
	return nil
}

// Errno returns the code of the last error this DB's Sync or Close
// produced, mirroring s4_errno's global last-error slot for
// compatibility with callers ported from that API. Errors from Open and
// from transactions are not recorded here; they are only returned by
// the call itself.
func (db *DB) Errno() errs.ErrNo {
	v, _ := db.lastErr.Load().(errs.ErrNo)
	return v
}

func setErr(db *DB, err *errs.Error) *errs.Error {
	if db != nil {
		db.lastErr.Store(err.Code)
	}
	return err
}
