package table

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// Suffixes applied to non-key columns present on both sides of a join.
const (
	LeftSuffix  = "_x"
	RightSuffix = "_y"
)

// keyIndex is a hash index over one column. Buckets are keyed by the xxh3
// hash of the canonical key; the key strings are compared inside a bucket so
// hash collisions cannot produce false matches.
type keyIndex struct {
	buckets map[uint64][]int
	keys    []string
}

func newKeyIndex(t *Table, col int) *keyIndex {
	ix := &keyIndex{
		buckets: make(map[uint64][]int, len(t.Rows)),
		keys:    make([]string, len(t.Rows)),
	}
	for i, r := range t.Rows {
		k, ok := KeyString(r[col])
		if !ok {
			continue
		}
		ix.keys[i] = k
		h := xxh3.HashString(k)
		ix.buckets[h] = append(ix.buckets[h], i)
	}
	return ix
}

// lookup returns the row positions whose key equals k, in table order.
func (ix *keyIndex) lookup(k string) []int {
	cand := ix.buckets[xxh3.HashString(k)]
	if len(cand) == 0 {
		return nil
	}
	out := cand[:0:0]
	for _, i := range cand {
		if ix.keys[i] == k {
			out = append(out, i)
		}
	}
	return out
}

// LeftJoin performs a left outer join of t with right on the column named on,
// which must exist on both sides.
//
// Every row of t is kept. A row with no match gets nil for all right-side
// columns; a row with n matches is emitted n times (fan-out), in right-side
// order. Null keys never match. The key column appears once, taken from t.
// Other columns present on both sides are suffixed with LeftSuffix and
// RightSuffix.
func (t *Table) LeftJoin(right *Table, on string) (*Table, error) {
	lk, err := t.MustIndex(on)
	if err != nil {
		return nil, err
	}
	rk, err := right.MustIndex(on)
	if err != nil {
		return nil, err
	}

	rightCols := make([]int, 0, len(right.Columns)-1)
	for i := range right.Columns {
		if i != rk {
			rightCols = append(rightCols, i)
		}
	}

	clash := make(map[string]bool)
	for _, i := range rightCols {
		if _, ok := t.Index(right.Columns[i].Name); ok {
			clash[right.Columns[i].Name] = true
		}
	}

	out := &Table{
		Name:    t.Name,
		Columns: make([]Column, 0, len(t.Columns)+len(rightCols)),
	}
	for _, c := range t.Columns {
		if clash[c.Name] {
			c.Name += LeftSuffix
		}
		out.Columns = append(out.Columns, c)
	}
	for _, i := range rightCols {
		c := right.Columns[i]
		if clash[c.Name] {
			c.Name += RightSuffix
		}
		out.Columns = append(out.Columns, c)
	}
	seen := make(map[string]bool, len(out.Columns))
	for _, c := range out.Columns {
		if seen[c.Name] {
			return nil, fmt.Errorf("left join %s with %s: duplicate output column %q", t.Name, right.Name, c.Name)
		}
		seen[c.Name] = true
	}

	ix := newKeyIndex(right, rk)
	width := len(out.Columns)
	out.Rows = make([][]any, 0, len(t.Rows))

	for _, lr := range t.Rows {
		var matches []int
		if k, ok := KeyString(lr[lk]); ok {
			matches = ix.lookup(k)
		}
		if len(matches) == 0 {
			row := make([]any, width)
			copy(row, lr)
			out.Rows = append(out.Rows, row)
			continue
		}
		for _, m := range matches {
			row := make([]any, width)
			copy(row, lr)
			rr := right.Rows[m]
			for j, i := range rightCols {
				row[len(lr)+j] = rr[i]
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}
