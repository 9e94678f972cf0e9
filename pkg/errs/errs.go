package errs

import "fmt"

// ErrNo is a database error code, mirroring the fixed set of error
// values the original C library returns from s4_errno.
type ErrNo int

const (
	NoError ErrNo = iota
	// Exists reports that a database already exists where a caller asked
	// to create a new one.
	Exists
	// NoEnt reports that a database does not exist where a caller asked
	// to open an existing one.
	NoEnt
	// Open reports a filesystem-level failure opening a database file.
	Open
	// Magic reports a file whose header does not carry the expected
	// magic bytes.
	Magic
	// Version reports a file whose format version this build does not
	// understand.
	Version
	// Incons reports a file whose contents are internally inconsistent.
	Incons
	// LogOpen reports that the redo log could not be opened, usually
	// because another process already holds it.
	LogOpen
	// LogRedo reports a failure replaying the redo log during recovery.
	LogRedo
	// Deadlock reports that a transaction was aborted to break a
	// waits-for cycle.
	Deadlock
	// Execute reports that a transaction's buffered writes could not be
	// applied to the store at commit time.
	Execute
	// LogFull reports that appending to the redo log failed, e.g. out
	// of disk space.
	LogFull
	// ReadOnly reports a write attempted on a read-only transaction.
	ReadOnly
)

func (e ErrNo) String() string {
	switch e {
	case NoError:
		return "no error"
	case Exists:
		return "database exists"
	case NoEnt:
		return "no such database"
	case Open:
		return "open failed"
	case Magic:
		return "bad magic"
	case Version:
		return "unsupported version"
	case Incons:
		return "inconsistent database"
	case LogOpen:
		return "log open failed"
	case LogRedo:
		return "log replay failed"
	case LogFull:
		return "log write failed"
	case Deadlock:
		return "deadlock"
	case Execute:
		return "commit apply failed"
	case ReadOnly:
		return "transaction is read-only"
	default:
		return "unknown error"
	}
}

// Error wraps an ErrNo with the operation that failed and, where one
// exists, the underlying cause.
type Error struct {
	Code ErrNo
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("s4: %s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("s4: %s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Code, letting
// callers write errors.Is(err, errs.New("", errs.Deadlock, nil)) style
// checks, or compare against a bare errs.Sentinel(code).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New builds an Error for op/code, optionally wrapping cause.
func New(op string, code ErrNo, cause error) *Error {
	return &Error{Code: code, Op: op, Err: cause}
}

// Sentinel returns a bare *Error carrying only code, suitable as the
// target of errors.Is(err, errs.Sentinel(errs.Deadlock)).
func Sentinel(code ErrNo) *Error { return &Error{Code: code} }
