package table

import (
	"fmt"
	"strconv"
	"time"
)

// Conform returns the rows with each value converted to the Go type a backend
// expects for its column kind: int64 for int, float64 for float, string for
// text. Values that cannot be converted losslessly are returned unchanged so
// the backend reports the mismatch. The returned rows are new slices.
func (t *Table) Conform() [][]any {
	out := make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		nr := make([]any, len(r))
		for j, v := range r {
			nr[j] = conformValue(t.Columns[j].Kind, v)
		}
		out[i] = nr
	}
	return out
}

func conformValue(k Kind, v any) any {
	if v == nil {
		return nil
	}
	switch k {
	case KindText, KindUnknown:
		switch t := v.(type) {
		case string:
			return t
		case []byte:
			return string(t)
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case time.Time:
			return t.Format(time.RFC3339Nano)
		default:
			return fmt.Sprint(t)
		}
	case KindInt:
		switch t := v.(type) {
		case int:
			return int64(t)
		case int8:
			return int64(t)
		case int16:
			return int64(t)
		case int32:
			return int64(t)
		case uint8:
			return int64(t)
		case uint16:
			return int64(t)
		case uint32:
			return int64(t)
		case bool:
			if t {
				return int64(1)
			}
			return int64(0)
		}
	case KindFloat:
		switch t := v.(type) {
		case float32:
			return float64(t)
		case int:
			return float64(t)
		case int32:
			return float64(t)
		case int64:
			return float64(t)
		}
	}
	return v
}
