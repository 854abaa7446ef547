// Package mysql implements a MySQL storage backend on go-sql-driver/mysql.
// Rows are loaded with multi-row INSERT statements sized to stay under the
// server's placeholder limit.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"staretl/internal/ddl"
	"staretl/internal/storage"
	"staretl/internal/table"
)

// maxPlaceholders is the prepared-statement parameter limit of the MySQL
// protocol.
const maxPlaceholders = 65535

// Config holds MySQL repository configuration.
type Config struct {
	DSN       string
	BatchSize int
	Job       string
	Logger    *zap.Logger
}

// Repository is a MySQL-backed implementation of storage.Backend.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository constructs a Repository and returns a Close function for
// cleanup. The DSN is parsed and parseTime is forced on so DATETIME columns
// scan as time.Time.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	mc.ParseTime = true
	if mc.Loc == nil {
		mc.Loc = time.UTC
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = storage.DefaultBatchSize
	}

	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	closeFn := func() { _ = db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// Dialect is the MySQL DDL dialect.
var Dialect = ddl.Dialect{
	QuoteFQN:   myFQN,
	QuoteIdent: myIdent,
	MapType:    MapType,
}

// MapType maps a logical column kind to a MySQL column type.
func MapType(k table.Kind) string {
	switch k {
	case table.KindInt:
		return "BIGINT"
	case table.KindFloat:
		return "DOUBLE"
	case table.KindBool:
		return "BOOLEAN"
	case table.KindTimestamp:
		return "DATETIME(6)"
	case table.KindDate:
		return "DATE"
	default:
		return "LONGTEXT"
	}
}

// ListTables returns the base tables of the connection's database.
func (r *Repository) ListTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("mysql: list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("mysql: scan table name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// ReadTable selects every row of name.
func (r *Repository) ReadTable(ctx context.Context, name string) (*table.Table, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT * FROM "+myFQN(name))
	if err != nil {
		return nil, fmt.Errorf("mysql: read %s: %w", name, err)
	}
	t, err := storage.ScanTable(rows, name, nil)
	if err != nil {
		return nil, fmt.Errorf("mysql: %w", err)
	}
	return t, nil
}

// ReplaceTable drops and recreates t.Name, then inserts every row. MySQL
// commits DDL implicitly, so the replace is not atomic.
func (r *Repository) ReplaceTable(ctx context.Context, t *table.Table) (int64, error) {
	stmts, err := ddl.ReplaceStatements(t.Name, t, Dialect)
	if err != nil {
		return 0, fmt.Errorf("mysql: %w", err)
	}
	for _, s := range stmts {
		if err := r.Exec(ctx, s); err != nil {
			return 0, err
		}
	}

	copyFn := func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
		return r.CopyFrom(ctx, t.Name, columns, rows)
	}
	return storage.LoadBatches(ctx, t.ColumnNames(), t.Conform(), storage.LoadOptions{
		Table:     t.Name,
		BatchSize: batchSize(r.cfg.BatchSize, len(t.Columns)),
		Job:       r.cfg.Job,
		Logger:    r.cfg.Logger,
	}, copyFn)
}

// batchSize caps want so one INSERT never exceeds maxPlaceholders.
func batchSize(want, columns int) int {
	if columns <= 0 {
		return want
	}
	if limit := maxPlaceholders / columns; want > limit {
		return limit
	}
	return want
}

// CopyFrom inserts rows into tableName with a single multi-row INSERT.
func (r *Repository) CopyFrom(ctx context.Context, tableName string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	query, args, err := buildInsert(tableName, columns, rows)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mysql: insert into %s: %w", tableName, err)
	}
	return res.RowsAffected()
}

// buildInsert renders INSERT INTO t (cols) VALUES (?,..),(?,..) and the
// flattened arguments.
func buildInsert(tableName string, columns []string, rows [][]any) (string, []any, error) {
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("mysql: insert: columns must not be empty")
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = myIdent(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", myFQN(tableName), strings.Join(quoted, ", "))
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("mysql: insert: row %d length %d != columns length %d", i, len(row), len(columns))
		}
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(tuple)
		args = append(args, row...)
	}
	return sb.String(), args, nil
}

// Exec executes a SQL statement.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("mysql: exec: %w", err)
	}
	return nil
}

// myIdent quotes a MySQL identifier with backticks.
func myIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

func myFQN(name string) string { return ddl.QuoteWith(myIdent)(name) }
