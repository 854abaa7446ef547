package ddl

import "staretl/internal/table"

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: logical column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., TEXT, BIGINT, TIMESTAMPTZ)
//   - Nullable: whether NULL is allowed
type ColumnDef struct {
	Name     string
	SQLType  string
	Nullable bool
}

// TableDef holds the table name and an ordered list of columns. The name may
// be schema-qualified in dotted form ("schema.table").
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Dialect captures what differs between backends when rendering DDL.
type Dialect struct {
	// QuoteFQN quotes a possibly schema-qualified table name.
	QuoteFQN func(string) string
	// QuoteIdent quotes a single column identifier.
	QuoteIdent func(string) string
	// MapType maps a logical column kind to the backend's SQL type.
	MapType func(table.Kind) string
	// DropIfExists renders the statement that removes a table if present.
	// When nil, "DROP TABLE IF EXISTS <fqn>" is used.
	DropIfExists func(quotedFQN string) string
}
