package star

import (
	"fmt"
	"sort"
	"time"

	"staretl/internal/table"
	"staretl/internal/transformer/builtin"
)

// DimDateColumns are the dim_date columns in order.
var DimDateColumns = []table.Column{
	{Name: "date", Kind: table.KindDate},
	{Name: "day", Kind: table.KindInt},
	{Name: "month", Kind: table.KindInt},
	{Name: "year", Kind: table.KindInt},
	{Name: "weekday", Kind: table.KindInt},
}

// DimDate returns one row per distinct calendar date of
// order_purchase_timestamp, sorted ascending. weekday counts from Monday=0 to
// Sunday=6. Null or unparseable timestamps contribute no row.
func DimDate(orders *table.Table) (*table.Table, error) {
	vals, err := orders.Values("order_purchase_timestamp")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", DimDateTable, err)
	}

	seen := make(map[time.Time]struct{})
	dates := make([]time.Time, 0)
	for _, v := range vals {
		ts, ok := builtin.ParseTimestamp(v)
		if !ok {
			continue
		}
		d := builtin.TruncateDate(ts)
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := table.New(DimDateTable, DimDateColumns...)
	out.Rows = make([][]any, 0, len(dates))
	for _, d := range dates {
		out.Rows = append(out.Rows, []any{
			d,
			int64(d.Day()),
			int64(d.Month()),
			int64(d.Year()),
			isoWeekday(d),
		})
	}
	return out, nil
}

// isoWeekday maps Sunday=0..Saturday=6 to Monday=0..Sunday=6.
func isoWeekday(t time.Time) int64 {
	return int64((int(t.Weekday()) + 6) % 7)
}
