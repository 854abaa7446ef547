package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"staretl/internal/table"
)

// NormalizeFunc converts one scanned value given its column's upper-cased
// database type name.
type NormalizeFunc func(dbType string, v any) any

// ScanTable drains rows into a table named name. Each value is passed through
// normalize (NormalizeSQLValue when nil) using the driver's database type name
// for its column, and column kinds are inferred from the normalized values.
// rows is closed.
func ScanTable(rows *sql.Rows, name string, normalize NormalizeFunc) (*table.Table, error) {
	defer rows.Close()
	if normalize == nil {
		normalize = NormalizeSQLValue
	}

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("%s: column types: %w", name, err)
	}
	t := &table.Table{Name: name, Columns: make([]table.Column, len(types))}
	dbTypes := make([]string, len(types))
	for i, ct := range types {
		t.Columns[i] = table.Column{Name: ct.Name()}
		dbTypes[i] = strings.ToUpper(ct.DatabaseTypeName())
	}

	for rows.Next() {
		vals := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", name, err)
		}
		for i, v := range vals {
			vals[i] = normalize(dbTypes[i], v)
		}
		t.Rows = append(t.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate rows: %w", name, err)
	}

	t.InferKinds()
	return t, nil
}

// NormalizeSQLValue converts a value scanned by a database/sql driver into a
// plain Go type. Drivers hand back many types as raw bytes; the database type
// name decides whether those bytes are a number or text.
func NormalizeSQLValue(dbType string, v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case []byte:
		s := string(t)
		switch dbType {
		case "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY", "FLOAT", "DOUBLE", "REAL":
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f
			}
		case "INT", "INTEGER", "BIGINT", "SMALLINT", "TINYINT", "MEDIUMINT", "UNSIGNED INT", "UNSIGNED BIGINT":
			if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
				return i
			}
		}
		return s
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int16:
		return int64(t)
	case int8:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}
