package walog

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cuemby/s4/pkg/value"
)

type recordType uint8

const (
	recordStringInsert recordType = 1
	recordPairInsert   recordType = 2
	recordPairRemove   recordType = 3
	recordCommit       recordType = 4
)

// Table distinguishes which intern table a StringInsert record targets.
type Table uint8

const (
	// TableKeys identifies the key intern table.
	TableKeys Table = 0
	// TableSrcs identifies the source intern table.
	TableSrcs Table = 1
)

type valueKind uint8

const (
	valueKindString valueKind = 0
	valueKindInt    valueKind = 1
)

// StringInsert binds an interned string to an id in one of the two
// intern tables.
type StringInsert struct {
	Table Table
	ID    uint32
	Str   string
}

// PairChange is a PairInsert or PairRemove record: a quintuple keyed by
// already-interned ids.
type PairChange struct {
	KeyA uint32
	ValA *value.Value
	KeyB uint32
	ValB *value.Value
	Src  uint32
}

func writeValue(w io.Writer, v *value.Value) error {
	if s, err := v.Str(); err == nil {
		if err := binary.Write(w, binary.BigEndian, valueKindString); err != nil {
			return err
		}
		b := []byte(s)
		if err := binary.Write(w, binary.BigEndian, uint32(len(b))); err != nil {
			return err
		}
		_, err := w.Write(b)
		return err
	}
	i, _ := v.Int()
	if err := binary.Write(w, binary.BigEndian, valueKindInt); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, i)
}

func readValue(r io.Reader) (*value.Value, error) {
	var kind valueKind
	if err := binary.Read(r, binary.BigEndian, &kind); err != nil {
		return nil, err
	}
	switch kind {
	case valueKindString:
		var n uint32
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		return value.NewString(string(buf)), nil
	case valueKindInt:
		var i int32
		if err := binary.Read(r, binary.BigEndian, &i); err != nil {
			return nil, err
		}
		return value.NewInt(i), nil
	default:
		return nil, fmt.Errorf("walog: unknown value kind %d", kind)
	}
}

func writeStringInsert(w *bufio.Writer, rec StringInsert) error {
	if err := binary.Write(w, binary.BigEndian, recordStringInsert); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, rec.Table); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, rec.ID); err != nil {
		return err
	}
	b := []byte(rec.Str)
	if err := binary.Write(w, binary.BigEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readStringInsert(r io.Reader) (StringInsert, error) {
	var rec StringInsert
	if err := binary.Read(r, binary.BigEndian, &rec.Table); err != nil {
		return rec, err
	}
	if err := binary.Read(r, binary.BigEndian, &rec.ID); err != nil {
		return rec, err
	}
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return rec, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return rec, err
	}
	rec.Str = string(buf)
	return rec, nil
}

func writePairChange(w *bufio.Writer, typ recordType, pc PairChange) error {
	if err := binary.Write(w, binary.BigEndian, typ); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, pc.KeyA); err != nil {
		return err
	}
	if err := writeValue(w, pc.ValA); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, pc.KeyB); err != nil {
		return err
	}
	if err := writeValue(w, pc.ValB); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, pc.Src)
}

func readPairChange(r io.Reader) (PairChange, error) {
	var pc PairChange
	if err := binary.Read(r, binary.BigEndian, &pc.KeyA); err != nil {
		return pc, err
	}
	va, err := readValue(r)
	if err != nil {
		return pc, err
	}
	pc.ValA = va
	if err := binary.Read(r, binary.BigEndian, &pc.KeyB); err != nil {
		return pc, err
	}
	vb, err := readValue(r)
	if err != nil {
		return pc, err
	}
	pc.ValB = vb
	if err := binary.Read(r, binary.BigEndian, &pc.Src); err != nil {
		return pc, err
	}
	return pc, nil
}
