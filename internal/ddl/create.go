// Package ddl renders the DROP/CREATE statements used to replace a target
// table with the shape of an in-memory table.
//
// The model (TableDef/ColumnDef) is backend-agnostic; each storage backend
// supplies a Dialect with its identifier quoting and type mapping.
package ddl

import (
	"fmt"
	"strings"

	"staretl/internal/table"
)

// FromTable derives a TableDef from an in-memory table. Every column is
// nullable; target tables carry no constraints.
func FromTable(fqn string, t *table.Table, d Dialect) TableDef {
	cols := make([]ColumnDef, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = ColumnDef{Name: c.Name, SQLType: d.MapType(c.Kind), Nullable: true}
	}
	return TableDef{FQN: fqn, Columns: cols}
}

// BuildCreateTableSQL renders a CREATE TABLE statement from a TableDef.
//
// Rules:
//
//   - t.FQN must be non-empty.
//   - Each column must have a non-empty Name and SQLType.
//   - A column is rendered as: <quoted name> <SQLType> [NOT NULL]
func BuildCreateTableSQL(t TableDef, d Dialect) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(d.QuoteIdent(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		cols = append(cols, sb.String())
	}

	return fmt.Sprintf(
		"CREATE TABLE %s (\n  %s\n)",
		d.QuoteFQN(fqn),
		strings.Join(cols, ",\n  "),
	), nil
}

// BuildDropTableSQL renders the dialect's drop-if-exists statement.
func BuildDropTableSQL(fqn string, d Dialect) (string, error) {
	fqn = strings.TrimSpace(fqn)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if d.DropIfExists != nil {
		return d.DropIfExists(d.QuoteFQN(fqn)), nil
	}
	return "DROP TABLE IF EXISTS " + d.QuoteFQN(fqn), nil
}

// ReplaceStatements returns the statements that drop any existing table named
// fqn and create it again with the columns of t.
func ReplaceStatements(fqn string, t *table.Table, d Dialect) ([]string, error) {
	drop, err := BuildDropTableSQL(fqn, d)
	if err != nil {
		return nil, err
	}
	create, err := BuildCreateTableSQL(FromTable(fqn, t, d), d)
	if err != nil {
		return nil, err
	}
	return []string{drop, create}, nil
}

// QuoteWith returns a QuoteFQN function that splits on dots and quotes each
// part with quote.
func QuoteWith(quote func(string) string) func(string) string {
	return func(name string) string {
		parts := strings.Split(name, ".")
		for i, p := range parts {
			parts[i] = quote(p)
		}
		return strings.Join(parts, ".")
	}
}
