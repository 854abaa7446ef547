package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staretl/internal/table"
)

func openTemp(t *testing.T) *Repository {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	r, closeFn, err := NewRepository(context.Background(), Config{DSN: dsn, BatchSize: 2})
	require.NoError(t, err)
	t.Cleanup(closeFn)
	return r
}

func TestNewRepository_EmptyDSN(t *testing.T) {
	_, _, err := NewRepository(context.Background(), Config{})
	require.Error(t, err)
}

func TestReplaceTable_RoundTrip(t *testing.T) {
	ctx := context.Background()
	r := openTemp(t)

	ts := time.Date(2017, 10, 2, 10, 56, 33, 0, time.UTC)
	tb := table.New("fact_orders",
		table.Column{Name: "order_id", Kind: table.KindText},
		table.Column{Name: "price", Kind: table.KindFloat},
		table.Column{Name: "payment_installments", Kind: table.KindInt},
		table.Column{Name: "order_purchase_timestamp", Kind: table.KindTimestamp},
	)
	tb.Rows = [][]any{
		{"o1", 29.99, int64(1), ts},
		{"o1", 10.0, int64(3), ts},
		{"o2", nil, nil, nil},
	}

	n, err := r.ReplaceTable(ctx, tb)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	got, err := r.ReadTable(ctx, "fact_orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"order_id", "price", "payment_installments", "order_purchase_timestamp"}, got.ColumnNames())
	require.Equal(t, 3, got.Len())
	assert.Equal(t, "o1", got.Rows[0][0])
	assert.Equal(t, 29.99, got.Rows[0][1])
	assert.Equal(t, int64(1), got.Rows[0][2])
	gotTS, ok := got.Rows[0][3].(time.Time)
	require.True(t, ok, "timestamp column should read back as time.Time, got %T", got.Rows[0][3])
	assert.True(t, ts.Equal(gotTS))
	assert.Equal(t, []any{"o2", nil, nil, nil}, got.Rows[2])
}

func TestReplaceTable_ReplacesExisting(t *testing.T) {
	ctx := context.Background()
	r := openTemp(t)

	first := table.New("dim_sellers",
		table.Column{Name: "seller_id", Kind: table.KindText},
		table.Column{Name: "seller_city", Kind: table.KindText},
	)
	first.Rows = [][]any{{"s1", "sao paulo"}, {"s2", "curitiba"}, {"s3", "campinas"}}
	_, err := r.ReplaceTable(ctx, first)
	require.NoError(t, err)

	second := table.New("dim_sellers", table.Column{Name: "seller_id", Kind: table.KindText})
	second.Rows = [][]any{{"s9"}}
	_, err = r.ReplaceTable(ctx, second)
	require.NoError(t, err)

	got, err := r.ReadTable(ctx, "dim_sellers")
	require.NoError(t, err)
	assert.Equal(t, []string{"seller_id"}, got.ColumnNames())
	assert.Equal(t, [][]any{{"s9"}}, got.Rows)
}

func TestReplaceTable_EmptyTableStillCreated(t *testing.T) {
	ctx := context.Background()
	r := openTemp(t)

	tb := table.New("dim_date", table.Column{Name: "date", Kind: table.KindDate})
	n, err := r.ReplaceTable(ctx, tb)
	require.NoError(t, err)
	assert.Zero(t, n)

	names, err := r.ListTables(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "dim_date")
}

func TestListTables_SkipsInternal(t *testing.T) {
	ctx := context.Background()
	r := openTemp(t)

	require.NoError(t, r.Exec(ctx, `CREATE TABLE b_tbl (id INTEGER PRIMARY KEY AUTOINCREMENT)`))
	require.NoError(t, r.Exec(ctx, `CREATE TABLE a_tbl (x TEXT)`))

	names, err := r.ListTables(ctx)
	require.NoError(t, err)
	// AUTOINCREMENT creates sqlite_sequence, which must not be listed.
	assert.Equal(t, []string{"a_tbl", "b_tbl"}, names)
}

func TestReadTable_Missing(t *testing.T) {
	r := openTemp(t)
	_, err := r.ReadTable(context.Background(), "nope")
	require.Error(t, err)
}

func TestCopyFrom_RowWidthMismatch(t *testing.T) {
	ctx := context.Background()
	r := openTemp(t)
	require.NoError(t, r.Exec(ctx, `CREATE TABLE t (a TEXT, b TEXT)`))

	_, err := r.CopyFrom(ctx, "t", []string{"a", "b"}, [][]any{{"only-one"}})
	require.Error(t, err)

	_, err = r.CopyFrom(ctx, "t", nil, [][]any{{"x"}})
	require.Error(t, err)
}

func TestMapType(t *testing.T) {
	assert.Equal(t, "INTEGER", MapType(table.KindInt))
	assert.Equal(t, "REAL", MapType(table.KindFloat))
	assert.Equal(t, "TIMESTAMP", MapType(table.KindTimestamp))
	assert.Equal(t, "DATE", MapType(table.KindDate))
	assert.Equal(t, "TEXT", MapType(table.KindText))
	assert.Equal(t, "TEXT", MapType(table.KindUnknown))
}
