package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staretl/internal/table"
)

type fakeSource struct {
	tables    map[string]*table.Table
	listCalls int
	reads     map[string]int
	listErr   error
	readErr   error
}

func newFakeSource(names ...string) *fakeSource {
	f := &fakeSource{tables: map[string]*table.Table{}, reads: map[string]int{}}
	for _, n := range names {
		t := table.New(n, table.Column{Name: "id", Kind: table.KindText})
		t.Rows = [][]any{{n + "-1"}}
		f.tables[n] = t
	}
	return f
}

func (f *fakeSource) ListTables(context.Context) ([]string, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []string
	for n := range f.tables {
		out = append(out, n)
	}
	return out, nil
}

func (f *fakeSource) ReadTable(_ context.Context, name string) (*table.Table, error) {
	f.reads[name]++
	if f.readErr != nil {
		return nil, f.readErr
	}
	t, ok := f.tables[name]
	if !ok {
		return nil, errors.New("relation does not exist")
	}
	return t, nil
}

func TestReadAll_ReadsEveryTable(t *testing.T) {
	src := newFakeSource("olist_customers_dataset", "olist_orders_dataset", "unused_table")
	cat, err := ReadAll(context.Background(), src, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"olist_customers_dataset", "olist_orders_dataset", "unused_table"}, cat.Names())
	assert.Equal(t, 1, src.listCalls)
	assert.Equal(t, 1, src.reads["unused_table"])

	tb, err := cat.Table(context.Background(), "olist_orders_dataset")
	require.NoError(t, err)
	assert.Equal(t, 1, tb.Len())

	_, err = cat.Table(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestReadAll_PropagatesFailures(t *testing.T) {
	boom := errors.New("connection refused")

	src := newFakeSource("a")
	src.listErr = boom
	_, err := ReadAll(context.Background(), src, nil)
	assert.ErrorIs(t, err, boom)

	src = newFakeSource("a", "b")
	src.readErr = boom
	cat, err := ReadAll(context.Background(), src, nil)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, cat)
}

func TestLazy_ReadsOnDemandAndMemoizes(t *testing.T) {
	src := newFakeSource("olist_customers_dataset", "olist_sellers_dataset", "unused_table")
	cat := NewLazy(src, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := cat.Table(ctx, "olist_customers_dataset")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, src.reads["olist_customers_dataset"])
	assert.Equal(t, 1, src.listCalls)
	assert.Zero(t, src.reads["unused_table"])
}

func TestLazy_MissingTable(t *testing.T) {
	src := newFakeSource("a")
	cat := NewLazy(src, nil)

	_, err := cat.Table(context.Background(), "olist_order_reviews_dataset")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTableNotFound)
	assert.Contains(t, err.Error(), "olist_order_reviews_dataset")
	assert.Zero(t, src.reads["olist_order_reviews_dataset"])
}

func TestLazy_ReadErrorNotMemoized(t *testing.T) {
	src := newFakeSource("a")
	src.readErr = errors.New("timeout")
	cat := NewLazy(src, nil)

	_, err := cat.Table(context.Background(), "a")
	require.Error(t, err)

	src.readErr = nil
	tb, err := cat.Table(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", tb.Name)
	assert.Equal(t, 2, src.reads["a"])
}

func TestNew_Modes(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource("a")

	c, err := New(ctx, src, "", nil)
	require.NoError(t, err)
	assert.IsType(t, &Lazy{}, c)

	c, err = New(ctx, src, ModeEager, nil)
	require.NoError(t, err)
	assert.IsType(t, Eager{}, c)

	_, err = New(ctx, src, "sometimes", nil)
	assert.Error(t, err)
}
