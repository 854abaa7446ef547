package builtin

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"staretl/internal/table"
)

// Coerce converts the named columns to a target type.
//
// Supported types: "text", "numeric" (float64), "int" (int64), "timestamp"
// and "date" (time.Time, date truncated to midnight UTC). Values that cannot
// be converted become nil; Coerce never fails on data. nil stays nil for
// every type. A configured column missing from the table is an error.
type Coerce struct {
	Types map[string]string // column -> one of: text, numeric, int, timestamp, date
}

// Apply returns a copy of in with the configured columns converted and their
// Kind updated.
func (c Coerce) Apply(in *table.Table) (*table.Table, error) {
	if len(c.Types) == 0 {
		return in, nil
	}
	out := in.Clone()
	for col, typ := range c.Types {
		idx, err := out.MustIndex(col)
		if err != nil {
			return nil, fmt.Errorf("coerce: %w", err)
		}
		conv, kind, err := converter(typ)
		if err != nil {
			return nil, fmt.Errorf("coerce %s: %w", col, err)
		}
		for _, r := range out.Rows {
			r[idx] = conv(r[idx])
		}
		out.Columns[idx].Kind = kind
	}
	return out, nil
}

func converter(typ string) (func(any) any, table.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "text", "string":
		return func(v any) any {
			if s, ok := ToText(v); ok {
				return s
			}
			return nil
		}, table.KindText, nil
	case "numeric", "float":
		return func(v any) any {
			if f, ok := ToFloat(v); ok {
				return f
			}
			return nil
		}, table.KindFloat, nil
	case "int":
		return func(v any) any {
			if i, ok := ToInt(v); ok {
				return i
			}
			return nil
		}, table.KindInt, nil
	case "timestamp", "datetime":
		return func(v any) any {
			if t, ok := ParseTimestamp(v); ok {
				return t
			}
			return nil
		}, table.KindTimestamp, nil
	case "date":
		return func(v any) any {
			if t, ok := ParseTimestamp(v); ok {
				return TruncateDate(t)
			}
			return nil
		}, table.KindDate, nil
	default:
		return nil, table.KindUnknown, fmt.Errorf("unknown type %q", typ)
	}
}

// ToText renders v as NFC-normalized text. ok is false for nil.
func ToText(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		s = t
	case []byte:
		s = string(t)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(t), 'f', -1, 32)
	case time.Time:
		s = t.Format(time.RFC3339Nano)
	default:
		s = fmt.Sprint(t)
	}
	return norm.NFC.String(s), true
}

// ToFloat converts numbers and numeric strings to float64. Empty strings,
// non-numeric strings, NaN and infinities are rejected.
func ToFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int8:
		f = float64(t)
	case int16:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint8:
		f = float64(t)
	case uint16:
		f = float64(t)
	case uint32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case bool:
		if t {
			f = 1
		}
	case string:
		return parseFloat(t)
	case []byte:
		return parseFloat(string(t))
	case fmt.Stringer:
		return parseFloat(t.String())
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ToInt converts integral numbers and integer strings to int64. Floats with a
// fractional part are rejected.
func ToInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case string, []byte:
		s, _ := ToText(t)
		s = strings.TrimSpace(s)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
	}
	f, ok := ToFloat(v)
	if !ok || f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// timestampLayouts are tried in order when parsing text timestamps.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp converts time.Time values and timestamp strings to
// time.Time. Strings without a zone are interpreted as UTC.
func ParseTimestamp(v any) (time.Time, bool) {
	var s string
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// TruncateDate drops the time of day, keeping the calendar date as seen in
// t's own location, and returns it at midnight UTC.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
