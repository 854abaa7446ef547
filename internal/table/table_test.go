package table

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orders() *Table {
	t := New("orders", Column{"order_id", KindText}, Column{"customer_id", KindText})
	t.Rows = [][]any{{"o1", "c1"}, {"o2", "c2"}, {"o3", "c3"}}
	return t
}

func items() *Table {
	t := New("items", Column{"order_id", KindText}, Column{"product_id", KindText}, Column{"price", KindFloat})
	t.Rows = [][]any{
		{"o1", "p1", 10.0},
		{"o1", "p2", 20.0},
		{"o3", "p3", 5.5},
		{"o9", "p9", 1.0},
	}
	return t
}

func TestLeftJoin_FanOutAndUnmatched(t *testing.T) {
	got, err := orders().LeftJoin(items(), "order_id")
	require.NoError(t, err)

	assert.Equal(t, []string{"order_id", "customer_id", "product_id", "price"}, got.ColumnNames())
	want := [][]any{
		{"o1", "c1", "p1", 10.0},
		{"o1", "c1", "p2", 20.0},
		{"o2", "c2", nil, nil},
		{"o3", "c3", "p3", 5.5},
	}
	assert.Equal(t, want, got.Rows)
}

func TestLeftJoin_NeverDropsLeftRows(t *testing.T) {
	empty := New("items", Column{"order_id", KindText}, Column{"product_id", KindText})
	got, err := orders().LeftJoin(empty, "order_id")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Len())
	for _, r := range got.Rows {
		assert.Nil(t, r[2])
	}
}

func TestLeftJoin_NullKeysDoNotMatch(t *testing.T) {
	left := New("l", Column{"k", KindText}, Column{"a", KindInt})
	left.Rows = [][]any{{nil, int64(1)}, {"x", int64(2)}}
	right := New("r", Column{"k", KindText}, Column{"b", KindText})
	right.Rows = [][]any{{nil, "null-row"}, {"x", "hit"}}

	got, err := left.LeftJoin(right, "k")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{nil, int64(1), nil}, {"x", int64(2), "hit"}}, got.Rows)
}

func TestLeftJoin_KeyTypesCompareCanonically(t *testing.T) {
	left := New("l", Column{"k", KindInt})
	left.Rows = [][]any{{int64(7)}}
	right := New("r", Column{"k", KindText}, Column{"v", KindText})
	right.Rows = [][]any{{"7", "seven"}}

	got, err := left.LeftJoin(right, "k")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(7), "seven"}}, got.Rows)
}

func TestLeftJoin_SuffixesClashingColumns(t *testing.T) {
	left := New("l", Column{"k", KindText}, Column{"v", KindText})
	left.Rows = [][]any{{"a", "left"}}
	right := New("r", Column{"k", KindText}, Column{"v", KindText})
	right.Rows = [][]any{{"a", "right"}}

	got, err := left.LeftJoin(right, "k")
	require.NoError(t, err)
	assert.Equal(t, []string{"k", "v_x", "v_y"}, got.ColumnNames())
	assert.Equal(t, [][]any{{"a", "left", "right"}}, got.Rows)
}

func TestLeftJoin_WhitespaceIsSignificant(t *testing.T) {
	left := New("l", Column{"order_id", KindText})
	left.Rows = [][]any{{"o1"}, {"o1 "}}
	right := New("r", Column{"order_id", KindText}, Column{"v", KindText})
	right.Rows = [][]any{{"o1", "exact"}, {" o1", "leading"}}

	got, err := left.LeftJoin(right, "order_id")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"o1", "exact"}, {"o1 ", nil}}, got.Rows)
}

func TestLeftJoin_MissingKeyColumn(t *testing.T) {
	_, err := orders().LeftJoin(New("r", Column{"id", KindText}), "order_id")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrColumnNotFound))
}

func TestSelect(t *testing.T) {
	got, err := orders().Select("customer_id", "order_id")
	require.NoError(t, err)
	assert.Equal(t, []string{"customer_id", "order_id"}, got.ColumnNames())
	assert.Equal(t, []any{"c1", "o1"}, got.Rows[0])

	_, err = orders().Select("nope")
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestCloneIsolatesRows(t *testing.T) {
	src := orders()
	c := src.Clone()
	c.Rows[0][1] = "changed"
	assert.Equal(t, "c1", src.Rows[0][1])
}

func TestAppendChecksWidth(t *testing.T) {
	tb := orders()
	require.NoError(t, tb.Append("o4", "c4"))
	assert.Error(t, tb.Append("o5"))
	assert.Equal(t, 4, tb.Len())
}

func TestInferKind(t *testing.T) {
	cases := []struct {
		name string
		in   []any
		want Kind
	}{
		{"empty", nil, KindText},
		{"all nil", []any{nil, nil}, KindText},
		{"ints", []any{int64(1), nil, int64(2)}, KindInt},
		{"int and float widen", []any{int64(1), 2.5}, KindFloat},
		{"strings", []any{"a", nil}, KindText},
		{"bool", []any{true}, KindBool},
		{"time", []any{time.Now()}, KindTimestamp},
		{"mixed falls back to text", []any{int64(1), "a"}, KindText},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, InferKind(tc.in))
		})
	}
}

func TestKeyString(t *testing.T) {
	k, ok := KeyString(nil)
	assert.False(t, ok)
	assert.Empty(t, k)

	k, _ = KeyString(" abc ")
	assert.Equal(t, " abc ", k)
	k, _ = KeyString(int64(42))
	assert.Equal(t, "42", k)
	k, _ = KeyString(42.0)
	assert.Equal(t, "42", k)
	k, _ = KeyString(4.25)
	assert.Equal(t, "4.25", k)
	k, _ = KeyString([]byte("b"))
	assert.Equal(t, "b", k)
}
