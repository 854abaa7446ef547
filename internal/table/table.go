// Package table defines the in-memory tabular dataset that flows between the
// extract, transform and load stages.
//
// A Table is an ordered list of named, typed columns over positional rows.
// Rows are [][]any aligned with Columns; nil is a SQL NULL. Values are plain
// Go types (string, int64, float64, bool, time.Time) once a source backend has
// normalized them.
package table

import (
	"errors"
	"fmt"
	"time"
)

// ErrColumnNotFound is returned when an operation references a column the
// table does not carry.
var ErrColumnNotFound = errors.New("column not found")

// Kind is the logical type of a column. Backends map it onto their own SQL
// types when rendering DDL.
type Kind string

const (
	KindUnknown   Kind = ""
	KindText      Kind = "text"
	KindInt       Kind = "int"
	KindFloat     Kind = "float"
	KindBool      Kind = "bool"
	KindTimestamp Kind = "timestamp"
	KindDate      Kind = "date"
)

// Column describes one column of a Table.
type Column struct {
	Name string
	Kind Kind
}

// Table is a named, in-memory tabular dataset.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// New returns an empty table with the given columns.
func New(name string, cols ...Column) *Table {
	return &Table{Name: name, Columns: append([]Column(nil), cols...)}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Index returns the position of the named column.
func (t *Table) Index(name string) (int, bool) {
	for i, c := range t.Columns {
		if c.Name == name {
			return i, true
		}
	}
	return -1, false
}

// MustIndex is like Index but returns an ErrColumnNotFound-wrapping error.
func (t *Table) MustIndex(name string) (int, error) {
	i, ok := t.Index(name)
	if !ok {
		return -1, fmt.Errorf("%s.%s: %w", t.Name, name, ErrColumnNotFound)
	}
	return i, nil
}

// Values returns a copy of every value in the named column.
func (t *Table) Values(name string) ([]any, error) {
	idx, err := t.MustIndex(name)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[idx]
	}
	return out, nil
}

// Append adds a row. The row length must match the column count.
func (t *Table) Append(row ...any) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("%s: row length %d != columns length %d", t.Name, len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Clone returns a copy whose row slices can be modified without touching t.
// Values themselves are shared.
func (t *Table) Clone() *Table {
	out := &Table{
		Name:    t.Name,
		Columns: append([]Column(nil), t.Columns...),
		Rows:    make([][]any, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = append([]any(nil), r...)
	}
	return out
}

// Select projects the table onto cols, in that order.
func (t *Table) Select(cols ...string) (*Table, error) {
	idx := make([]int, len(cols))
	out := &Table{Name: t.Name, Columns: make([]Column, len(cols))}
	for i, name := range cols {
		j, err := t.MustIndex(name)
		if err != nil {
			return nil, err
		}
		idx[i] = j
		out.Columns[i] = t.Columns[j]
	}
	out.Rows = make([][]any, len(t.Rows))
	for r, row := range t.Rows {
		nr := make([]any, len(idx))
		for i, j := range idx {
			nr[i] = row[j]
		}
		out.Rows[r] = nr
	}
	return out, nil
}

// SetKind overrides the logical type of a column.
func (t *Table) SetKind(name string, k Kind) error {
	i, err := t.MustIndex(name)
	if err != nil {
		return err
	}
	t.Columns[i].Kind = k
	return nil
}

// InferKinds sets the Kind of every column from its non-nil values.
func (t *Table) InferKinds() {
	for c := range t.Columns {
		vals := make([]any, 0, len(t.Rows))
		for _, r := range t.Rows {
			vals = append(vals, r[c])
		}
		t.Columns[c].Kind = InferKind(vals)
	}
}

// InferKind derives a logical type from a column's values. Integers and
// floats widen to float; any other mix falls back to text. A column with no
// non-nil values is text.
func InferKind(vals []any) Kind {
	k := KindUnknown
	for _, v := range vals {
		vk := kindOf(v)
		if vk == KindUnknown {
			continue
		}
		switch {
		case k == KindUnknown:
			k = vk
		case k == vk:
		case (k == KindInt && vk == KindFloat) || (k == KindFloat && vk == KindInt):
			k = KindFloat
		default:
			return KindText
		}
	}
	if k == KindUnknown {
		return KindText
	}
	return k
}

func kindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindUnknown
	case int, int8, int16, int32, int64, uint8, uint16, uint32, uint64:
		return KindInt
	case float32, float64:
		return KindFloat
	case bool:
		return KindBool
	case time.Time:
		return KindTimestamp
	default:
		return KindText
	}
}

// KeyString converts a key value to the canonical string used for joins and
// de-duplication, so "42" and int64(42) compare equal. Strings are compared
// exactly, whitespace included. ok is false for nil.
func KeyString(v any) (key string, ok bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case []byte:
		return string(t), true
	case int64:
		return fmt.Sprintf("%d", t), true
	case int:
		return fmt.Sprintf("%d", t), true
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t)), true
		}
		return fmt.Sprint(t), true
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano), true
	default:
		return fmt.Sprint(v), true
	}
}
