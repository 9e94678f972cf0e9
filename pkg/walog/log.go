package walog

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/gofrs/flock"

	"github.com/cuemby/s4/pkg/log"
)

// Log is the append-only redo log backing a database. Only one process
// may hold it open at a time, enforced with an exclusive advisory lock
// on the log file itself.
type Log struct {
	mu   sync.Mutex
	path string
	file *os.File
	flk  *flock.Flock
	w    *bufio.Writer
}

// Open opens (creating if absent) the log file at path for appending,
// taking an exclusive advisory lock. Returns an error if another
// process already holds the lock.
func Open(path string) (*Log, error) {
	flk := flock.New(path)
	locked, err := flk.TryLock()
	if err != nil {
		return nil, fmt.Errorf("walog: lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("walog: %s is locked by another process", path)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		_ = flk.Unlock()
		return nil, fmt.Errorf("walog: open %s: %w", path, err)
	}

	return &Log{path: path, file: f, flk: flk, w: bufio.NewWriter(f)}, nil
}

// StringInsert appends a StringInsert record.
func (l *Log) StringInsert(table Table, id uint32, s string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return writeStringInsert(l.w, StringInsert{Table: table, ID: id, Str: s})
}

// PairInsert appends a PairInsert record.
func (l *Log) PairInsert(pc PairChange) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return writePairChange(l.w, recordPairInsert, pc)
}

// PairRemove appends a PairRemove record.
func (l *Log) PairRemove(pc PairChange) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return writePairChange(l.w, recordPairRemove, pc)
}

// Commit appends a COMMIT record and flushes and fsyncs the log,
// making every record written since the previous commit durable and
// eligible for replay.
func (l *Log) Commit() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.w.WriteByte(byte(recordCommit)); err != nil {
		return fmt.Errorf("walog: write commit: %w", err)
	}
	if err := l.w.Flush(); err != nil {
		return fmt.Errorf("walog: flush: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("walog: fsync: %w", err)
	}
	return nil
}

// Truncate discards the log's contents, used right after a snapshot
// has durably captured the same state.
func (l *Log) Truncate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.w.Flush(); err != nil {
		return fmt.Errorf("walog: flush before truncate: %w", err)
	}
	if err := l.file.Truncate(0); err != nil {
		return fmt.Errorf("walog: truncate: %w", err)
	}
	if _, err := l.file.Seek(0, 0); err != nil {
		return fmt.Errorf("walog: seek: %w", err)
	}
	l.w = bufio.NewWriter(l.file)
	log.WithComponent("walog").Debug().Str("path", l.path).Msg("log truncated")
	return nil
}

// Close flushes, closes the underlying file and releases the lock.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	flushErr := l.w.Flush()
	closeErr := l.file.Close()
	unlockErr := l.flk.Unlock()

	for _, err := range []error{flushErr, closeErr, unlockErr} {
		if err != nil {
			return fmt.Errorf("walog: close: %w", err)
		}
	}
	return nil
}
