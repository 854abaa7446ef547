package star

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staretl/internal/catalog"
	"staretl/internal/table"
)

func text(names ...string) []table.Column {
	cols := make([]table.Column, len(names))
	for i, n := range names {
		cols[i] = table.Column{Name: n, Kind: table.KindText}
	}
	return cols
}

func tbl(name string, cols []table.Column, rows ...[]any) *table.Table {
	t := table.New(name, cols...)
	t.Rows = rows
	return t
}

func distinct(t *testing.T, tb *table.Table, col string) map[any]int {
	t.Helper()
	vals, err := tb.Values(col)
	require.NoError(t, err)
	out := map[any]int{}
	for _, v := range vals {
		out[v]++
	}
	return out
}

func TestDimCustomers_UniqueKey(t *testing.T) {
	in := tbl(CustomersTable,
		[]table.Column{{Name: "customer_id", Kind: table.KindText}, {Name: "customer_unique_id", Kind: table.KindInt}, {Name: "customer_city", Kind: table.KindText}},
		[]any{"c1", int64(101), "sao paulo"},
		[]any{"c2", int64(102), "rio"},
		[]any{"c1", int64(101), "sao paulo"},
		[]any{"c3", nil, "curitiba"},
	)

	got, err := DimCustomers(in)
	require.NoError(t, err)
	assert.Equal(t, DimCustomersTable, got.Name)
	assert.Equal(t, 3, got.Len())
	for k, n := range distinct(t, got, "customer_id") {
		assert.Equal(t, 1, n, "customer_id %v repeated", k)
	}

	ids, _ := got.Values("customer_unique_id")
	assert.Equal(t, []any{"101", "102", nil}, ids)
	idx, _ := got.Index("customer_unique_id")
	assert.Equal(t, table.KindText, got.Columns[idx].Kind)

	// input untouched
	assert.Equal(t, int64(101), in.Rows[0][1])
	assert.Equal(t, 4, in.Len())
}

func TestDimCustomers_MissingKeyColumn(t *testing.T) {
	_, err := DimCustomers(tbl(CustomersTable, text("id")))
	assert.ErrorIs(t, err, table.ErrColumnNotFound)
}

func TestDimSellers_CountMatchesDistinct(t *testing.T) {
	in := tbl(SellersTable, text("seller_id", "seller_state"),
		[]any{"s1", "SP"}, []any{"s2", "RJ"}, []any{"s2", "RJ"}, []any{"s3", "PR"}, []any{"s1", "SP"})

	got, err := DimSellers(in)
	require.NoError(t, err)
	assert.Equal(t, DimSellersTable, got.Name)
	assert.Equal(t, len(distinct(t, in, "seller_id")), got.Len())
	assert.Equal(t, SellersTable, in.Name)
}

func TestDimProducts_UntranslatedCategoryKept(t *testing.T) {
	products := tbl(ProductsTable, text("product_id", "product_category_name"),
		[]any{"p1", "beleza_saude"},
		[]any{"p2", "categoria_sem_traducao"},
		[]any{"p3", nil},
		[]any{"p1", "beleza_saude"},
	)
	translation := tbl(TranslationTable, text("product_category_name", "product_category_name_english"),
		[]any{"beleza_saude", "health_beauty"},
	)

	got, err := DimProducts(products, translation)
	require.NoError(t, err)
	assert.Equal(t, []string{"product_id", "product_category_name", "product_category_name_english"}, got.ColumnNames())
	require.Equal(t, 3, got.Len())
	assert.Equal(t, []any{"p1", "beleza_saude", "health_beauty"}, got.Rows[0])
	assert.Equal(t, []any{"p2", "categoria_sem_traducao", nil}, got.Rows[1])
	assert.Equal(t, []any{"p3", nil, nil}, got.Rows[2])
}

func TestDimProducts_DuplicateTranslationsCollapse(t *testing.T) {
	products := tbl(ProductsTable, text("product_id", "product_category_name"), []any{"p1", "pcs"})
	translation := tbl(TranslationTable, text("product_category_name", "product_category_name_english"),
		[]any{"pcs", "computers"}, []any{"pcs", "pcs"})

	got, err := DimProducts(products, translation)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
}

func TestDimDate_OneRowPerCalendarDate(t *testing.T) {
	orders := tbl(OrdersTable, text("order_id", "order_purchase_timestamp"),
		[]any{"o1", "2017-10-02 10:56:33"},
		[]any{"o2", "2017-10-02 23:59:59"},
		[]any{"o3", "2018-07-24 20:41:37"},
		[]any{"o4", nil},
		[]any{"o5", "not a date"},
		[]any{"o6", time.Date(2016, 9, 4, 21, 15, 19, 0, time.UTC)},
	)

	got, err := DimDate(orders)
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "day", "month", "year", "weekday"}, got.ColumnNames())
	require.Equal(t, 3, got.Len())

	want := [][]any{
		// 2016-09-04 was a Sunday.
		{time.Date(2016, 9, 4, 0, 0, 0, 0, time.UTC), int64(4), int64(9), int64(2016), int64(6)},
		// 2017-10-02 was a Monday.
		{time.Date(2017, 10, 2, 0, 0, 0, 0, time.UTC), int64(2), int64(10), int64(2017), int64(0)},
		// 2018-07-24 was a Tuesday.
		{time.Date(2018, 7, 24, 0, 0, 0, 0, time.UTC), int64(24), int64(7), int64(2018), int64(1)},
	}
	assert.Equal(t, want, got.Rows)

	for _, r := range got.Rows {
		d := r[0].(time.Time)
		assert.Equal(t, int64(d.Day()), r[1])
		assert.Equal(t, int64(d.Month()), r[2])
		assert.Equal(t, int64(d.Year()), r[3])
	}
}

func TestDimDate_MissingColumn(t *testing.T) {
	_, err := DimDate(tbl(OrdersTable, text("order_id")))
	assert.ErrorIs(t, err, table.ErrColumnNotFound)
}

func TestIsoWeekday(t *testing.T) {
	monday := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		assert.Equal(t, int64(i), isoWeekday(monday.AddDate(0, 0, i)))
	}
}

func TestBuild_OrderAndLaziness(t *testing.T) {
	jobs := Build(catalog.Eager{})
	names := make([]string, len(jobs))
	for i, j := range jobs {
		names[i] = j.Table
	}
	assert.Equal(t, []string{DimCustomersTable, DimSellersTable, DimProductsTable, DimDateTable, FactOrdersTable}, names)

	// Nothing is read until a job runs, and a missing input surfaces then.
	_, err := jobs[0].Build(context.Background())
	assert.ErrorIs(t, err, catalog.ErrTableNotFound)
}

func TestBuild_RunsEveryJob(t *testing.T) {
	cat := olistCatalog()
	for _, j := range Build(cat) {
		got, err := j.Build(context.Background())
		require.NoError(t, err, j.Table)
		assert.Equal(t, j.Table, got.Name)
	}
}

func TestDimCustomers_RowsMatchDistinctIDs(t *testing.T) {
	in := tbl(CustomersTable, text("customer_id", "customer_unique_id"),
		[]any{"abc", "u1"},
		[]any{"abc ", "u2"},
		[]any{" abc", "u3"},
		[]any{"abc", "u1"},
	)
	got, err := DimCustomers(in)
	require.NoError(t, err)
	assert.Equal(t, len(distinct(t, in, "customer_id")), got.Len())
}
