package walog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/s4/pkg/store"
	"github.com/cuemby/s4/pkg/value"
)

// ErrVersion is returned by LoadSnapshot when the snapshot file's meta
// bucket carries a version this build does not understand.
var ErrVersion = fmt.Errorf("walog: unsupported snapshot version")

var (
	bucketMeta    = []byte("meta")
	bucketKeys    = []byte("keys")
	bucketSrcs    = []byte("srcs")
	bucketEntries = []byte("entries")
)

const snapshotVersion = 1

// Snapshot writes the full state of s to a bbolt file at path,
// overwriting any previous snapshot there. Each interned string and
// each entry is written keyed by a big-endian id so Ascend order on
// load matches id order, letting intern ids be restored exactly.
func Snapshot(path string, s *store.Store) error {
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return fmt.Errorf("walog: open snapshot %s: %w", path, err)
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		if err := meta.Put([]byte("version"), uint32Bytes(snapshotVersion)); err != nil {
			return err
		}

		keysB, err := recreateBucket(tx, bucketKeys)
		if err != nil {
			return err
		}
		for id, name := range s.AllKeys() {
			if err := keysB.Put(uint32Bytes(uint32(id)), []byte(name)); err != nil {
				return err
			}
		}

		srcsB, err := recreateBucket(tx, bucketSrcs)
		if err != nil {
			return err
		}
		for id, name := range s.AllSrcs() {
			if err := srcsB.Put(uint32Bytes(uint32(id)), []byte(name)); err != nil {
				return err
			}
		}

		entriesB, err := recreateBucket(tx, bucketEntries)
		if err != nil {
			return err
		}
		for i, e := range s.All() {
			buf, err := encodeEntry(e)
			if err != nil {
				return err
			}
			if err := entriesB.Put(uint32Bytes(uint32(i)), buf); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadSnapshot reads a Store back from a bbolt file written by
// Snapshot. A missing file yields an empty Store. A file that exists
// but is not a valid snapshot (wrong format or unsupported version) is
// reported as an error rather than silently treated as empty.
func LoadSnapshot(path string) (*store.Store, error) {
	s := store.New()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return s, nil
	}

	db, err := bolt.Open(path, 0o644, &bolt.Options{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("walog: open snapshot %s: %w", path, err)
	}
	defer db.Close()

	err = db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta != nil {
			if v := meta.Get([]byte("version")); v != nil && bytesUint32(v) != snapshotVersion {
				return ErrVersion
			}
		}
		if keysB := tx.Bucket(bucketKeys); keysB != nil {
			if err := keysB.ForEach(func(k, v []byte) error {
				s.InternKeyWithID(store.KeyID(bytesUint32(k)), string(v))
				return nil
			}); err != nil {
				return err
			}
		}
		if srcsB := tx.Bucket(bucketSrcs); srcsB != nil {
			if err := srcsB.ForEach(func(k, v []byte) error {
				s.InternSrcWithID(store.SrcID(bytesUint32(k)), string(v))
				return nil
			}); err != nil {
				return err
			}
		}
		if entriesB := tx.Bucket(bucketEntries); entriesB != nil {
			if err := entriesB.ForEach(func(k, v []byte) error {
				e, err := decodeEntry(v)
				if err != nil {
					return err
				}
				s.AddIDs(e.KeyA, e.ValA, e.KeyB, e.ValB, e.Src)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walog: load snapshot %s: %w", path, err)
	}
	return s, nil
}

var metaUUIDKey = []byte("uuid")

// WriteMetaUUID persists id in path's meta bucket, creating the file
// if it does not exist yet. It does not touch the keys/srcs/entries
// buckets, so it is safe to call before the first Snapshot.
func WriteMetaUUID(path string, id [16]byte) error {
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return fmt.Errorf("walog: open %s for uuid: %w", path, err)
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		return meta.Put(metaUUIDKey, id[:])
	})
}

// ReadMetaUUID reads a uuid previously written by WriteMetaUUID. ok is
// false if the file or the meta key does not exist yet.
func ReadMetaUUID(path string) (id [16]byte, ok bool, err error) {
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		return id, false, nil
	}

	db, err := bolt.Open(path, 0o644, &bolt.Options{ReadOnly: true})
	if err != nil {
		return id, false, fmt.Errorf("walog: open %s for uuid: %w", path, err)
	}
	defer db.Close()

	err = db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta == nil {
			return nil
		}
		if v := meta.Get(metaUUIDKey); v != nil && len(v) == 16 {
			copy(id[:], v)
			ok = true
		}
		return nil
	})
	return id, ok, err
}

func recreateBucket(tx *bolt.Tx, name []byte) (*bolt.Bucket, error) {
	if err := tx.DeleteBucket(name); err != nil && err != bolt.ErrBucketNotFound {
		return nil, err
	}
	return tx.CreateBucket(name)
}

func uint32Bytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func bytesUint32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

func encodeEntry(e *store.Entry) ([]byte, error) {
	var buf []byte
	buf = append(buf, uint32Bytes(uint32(e.KeyA))...)
	va, err := encodeValueBytes(e.ValA)
	if err != nil {
		return nil, err
	}
	buf = append(buf, va...)
	buf = append(buf, uint32Bytes(uint32(e.KeyB))...)
	vb, err := encodeValueBytes(e.ValB)
	if err != nil {
		return nil, err
	}
	buf = append(buf, vb...)
	buf = append(buf, uint32Bytes(uint32(e.Src))...)
	return buf, nil
}

func decodeEntry(buf []byte) (*store.Entry, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("walog: truncated entry record")
	}
	e := &store.Entry{}
	e.KeyA = store.KeyID(bytesUint32(buf[:4]))
	buf = buf[4:]

	va, rest, err := decodeValueBytes(buf)
	if err != nil {
		return nil, err
	}
	e.ValA = va
	buf = rest

	if len(buf) < 4 {
		return nil, fmt.Errorf("walog: truncated entry record")
	}
	e.KeyB = store.KeyID(bytesUint32(buf[:4]))
	buf = buf[4:]

	vb, rest, err := decodeValueBytes(buf)
	if err != nil {
		return nil, err
	}
	e.ValB = vb
	buf = rest

	if len(buf) < 4 {
		return nil, fmt.Errorf("walog: truncated entry record")
	}
	e.Src = store.SrcID(bytesUint32(buf[:4]))
	return e, nil
}

func encodeValueBytes(v *value.Value) ([]byte, error) {
	if s, err := v.Str(); err == nil {
		b := []byte(s)
		out := append([]byte{byte(valueKindString)}, uint32Bytes(uint32(len(b)))...)
		return append(out, b...), nil
	}
	i, _ := v.Int()
	out := []byte{byte(valueKindInt)}
	ib := make([]byte, 4)
	binary.BigEndian.PutUint32(ib, uint32(i))
	return append(out, ib...), nil
}

func decodeValueBytes(buf []byte) (*value.Value, []byte, error) {
	if len(buf) < 1 {
		return nil, nil, fmt.Errorf("walog: truncated value")
	}
	kind := valueKind(buf[0])
	buf = buf[1:]
	switch kind {
	case valueKindString:
		if len(buf) < 4 {
			return nil, nil, fmt.Errorf("walog: truncated value length")
		}
		n := bytesUint32(buf[:4])
		buf = buf[4:]
		if uint32(len(buf)) < n {
			return nil, nil, fmt.Errorf("walog: truncated value bytes")
		}
		return value.NewString(string(buf[:n])), buf[n:], nil
	case valueKindInt:
		if len(buf) < 4 {
			return nil, nil, fmt.Errorf("walog: truncated int value")
		}
		i := int32(bytesUint32(buf[:4]))
		return value.NewInt(i), buf[4:], nil
	default:
		return nil, nil, fmt.Errorf("walog: unknown value kind %d", kind)
	}
}
