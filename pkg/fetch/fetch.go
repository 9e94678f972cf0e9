package fetch

import (
	"github.com/cuemby/s4/pkg/cond"
	"github.com/cuemby/s4/pkg/sourcepref"
	"github.com/cuemby/s4/pkg/store"
	"github.com/cuemby/s4/pkg/value"
)

// ColumnFlag modifies how a Column reads values relative to the pivot.
type ColumnFlag uint8

const (
	// Data fetches only the entry's own key's value — used when the
	// column's key is the key the query pivoted on.
	Data ColumnFlag = 1 << iota
	// Parent fetches across the edge: values of this key stored in
	// entries elsewhere in the store that share the pivot.
	Parent
)

// Column is one output field of a FetchSpec.
type Column struct {
	Key        string
	SourcePref *sourcepref.SourcePref
	Flags      ColumnFlag

	keyID store.KeyID
}

// NewColumn builds a Column.
func NewColumn(key string, sp *sourcepref.SourcePref, flags ColumnFlag) Column {
	return Column{Key: key, SourcePref: sp, Flags: flags}
}

// FetchSpec is an ordered list of Columns describing one query's
// projection.
type FetchSpec struct {
	Columns []Column
}

// NewFetchSpec builds a FetchSpec from columns in output order.
func NewFetchSpec(columns ...Column) *FetchSpec {
	return &FetchSpec{Columns: columns}
}

// Bind resolves every column's key name to s's interned id. Call once
// per store before Run.
func (fs *FetchSpec) Bind(s *store.Store) {
	for i := range fs.Columns {
		fs.Columns[i].keyID = s.InternKey(fs.Columns[i].Key)
	}
}

// CellValue is one (source, value) pair surviving source-preference
// resolution for a cell.
type CellValue struct {
	Src string
	Val *value.Value
}

// Row is one output row: one Cell per FetchSpec column, in order.
type Row []Cell

// Cell is the resolved set of values for one column on one row. An
// empty cell (no contributing source) is valid.
type Cell struct {
	Values []CellValue
}

// Run builds one row per pivot and de-duplicates rows that are
// identical across every column.
func Run(pivots []cond.Pivot, s *store.Store, fs *FetchSpec) []Row {
	rows := make([]Row, 0, len(pivots))
	for _, p := range pivots {
		row := make(Row, len(fs.Columns))
		for i, col := range fs.Columns {
			row[i] = resolveCell(s, col, p)
		}
		rows = append(rows, row)
	}
	return dedupeRows(rows)
}

func resolveCell(s *store.Store, col Column, p cond.Pivot) Cell {
	if col.keyID == p.Key && col.Flags&Parent == 0 {
		// The pivot's own identity: there is no single entry to read a
		// source from, so the cell carries the value with an empty
		// source marker.
		return Cell{Values: []CellValue{{Src: "", Val: p.Val}}}
	}

	entries := s.EntriesForKey(col.keyID)

	type hit struct {
		src string
		val *value.Value
		pri int
	}
	var hits []hit
	best := sourcepref.Worst

	for _, e := range entries {
		otherKey, otherVal, ok := e.Other(col.keyID)
		if !ok || otherKey != p.Key || !otherVal.Equal(p.Val) {
			continue
		}
		ownVal, ok := sideValue(e, col.keyID)
		if !ok {
			continue
		}
		srcName, _ := s.SrcName(e.Src)
		pri := col.SourcePref.Priority(srcName)
		hits = append(hits, hit{src: srcName, val: ownVal, pri: pri})
		if pri < best {
			best = pri
		}
	}

	var values []CellValue
	for _, h := range hits {
		if h.pri == best {
			values = append(values, CellValue{Src: h.src, Val: h.val})
		}
	}
	return Cell{Values: values}
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

func dedupeRows(rows []Row) []Row {
	seen := make(map[string]struct{}, len(rows))
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		key := rowKey(r)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

func rowKey(r Row) string {
	var b []byte
	for _, cell := range r {
		for _, cv := range cell.Values {
			b = append(b, cv.Src...)
			b = append(b, 0)
			if s, err := cv.Val.Str(); err == nil {
				b = append(b, 's')
				b = append(b, s...)
			} else {
				i, _ := cv.Val.Int()
				b = append(b, 'i', byte(i>>24), byte(i>>16), byte(i>>8), byte(i))
			}
			b = append(b, 0)
		}
		b = append(b, 1)
	}
	return string(b)
}
