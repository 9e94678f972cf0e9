package result

import (
	"encoding/binary"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/cuemby/s4/pkg/fetch"
	"github.com/cuemby/s4/pkg/value"
)

// OrderEntry is one step of a sort: either by column or by a seeded
// pseudo-random total order.
type OrderEntry interface {
	less(a, b fetch.Row) (isLess, equal bool)
}

// ColumnOrder compares rows by the lexicographically smallest
// qualifying cell value, among Columns, under Mode.
type ColumnOrder struct {
	Columns    []int
	Mode       value.Mode
	Descending bool
}

func (o ColumnOrder) smallest(r fetch.Row) *value.Value {
	var best *value.Value
	for _, ci := range o.Columns {
		if ci < 0 || ci >= len(r) {
			continue
		}
		for _, cv := range r[ci].Values {
			if best == nil || cv.Val.Compare(best, o.Mode) < 0 {
				best = cv.Val
			}
		}
	}
	return best
}

func (o ColumnOrder) less(a, b fetch.Row) (bool, bool) {
	av, bv := o.smallest(a), o.smallest(b)
	switch {
	case av == nil && bv == nil:
		return false, true
	case av == nil:
		return !o.Descending, false
	case bv == nil:
		return o.Descending, false
	}
	c := av.Compare(bv, o.Mode)
	if c == 0 {
		return false, true
	}
	if o.Descending {
		return c > 0, false
	}
	return c < 0, false
}

// RandomOrder establishes a pseudo-random but seed-stable total order:
// rows are ranked by the hash of their content combined with Seed.
type RandomOrder struct {
	Seed uint64
}

func (o RandomOrder) less(a, b fetch.Row) (bool, bool) {
	ha, hb := rowHash(a, o.Seed), rowHash(b, o.Seed)
	if ha == hb {
		return false, true
	}
	return ha < hb, false
}

func rowHash(r fetch.Row, seed uint64) uint64 {
	h := xxhash.New()
	seedBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(seedBuf, seed)
	_, _ = h.Write(seedBuf)
	for _, cell := range r {
		for _, cv := range cell.Values {
			_, _ = h.Write([]byte(cv.Src))
			if s, err := cv.Val.Str(); err == nil {
				_, _ = h.Write([]byte{'s'})
				_, _ = h.Write([]byte(s))
			} else {
				i, _ := cv.Val.Int()
				ib := make([]byte, 4)
				binary.BigEndian.PutUint32(ib, uint32(i))
				_, _ = h.Write([]byte{'i'})
				_, _ = h.Write(ib)
			}
		}
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// Order is a full sort specification: entries are applied in order,
// each breaking ties left by the previous one.
type Order []OrderEntry

// Shuffle returns an Order equivalent to one fresh random entry.
func Shuffle(seed uint64) Order {
	return Order{RandomOrder{Seed: seed}}
}

// Sort returns rows sorted by order. The sort is stable: rows tied
// across every entry keep their relative fetch order.
func Sort(rows []fetch.Row, order Order) []fetch.Row {
	out := make([]fetch.Row, len(rows))
	copy(out, rows)

	sort.SliceStable(out, func(i, j int) bool {
		for _, entry := range order {
			less, equal := entry.less(out[i], out[j])
			if equal {
				continue
			}
			return less
		}
		return false
	})
	return out
}
