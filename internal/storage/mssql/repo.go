// Package mssql implements a Microsoft SQL Server storage backend. Tables are
// read through database/sql and written with DROP/CREATE followed by the
// go-mssqldb bulk copy API, in one transaction per table.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
	"go.uber.org/zap"

	"staretl/internal/ddl"
	"staretl/internal/storage"
	"staretl/internal/table"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN       string
	BatchSize int
	Job       string
	Logger    *zap.Logger
}

// Repository is an MSSQL-backed implementation of storage.Backend.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = storage.DefaultBatchSize
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	closeFn := func() { _ = db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// Dialect is the SQL Server DDL dialect.
var Dialect = ddl.Dialect{
	QuoteFQN:   msFQN,
	QuoteIdent: msIdent,
	MapType:    MapType,
}

// MapType maps a logical column kind to a SQL Server column type.
func MapType(k table.Kind) string {
	switch k {
	case table.KindInt:
		return "BIGINT"
	case table.KindFloat:
		return "FLOAT"
	case table.KindBool:
		return "BIT"
	case table.KindTimestamp:
		return "DATETIME2"
	case table.KindDate:
		return "DATE"
	default:
		return "NVARCHAR(MAX)"
	}
}

// ListTables returns the base tables of the login's default schema.
func (r *Repository) ListTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE = 'BASE TABLE'
		  AND TABLE_SCHEMA = SCHEMA_NAME()
		ORDER BY TABLE_NAME`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("mssql: list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("mssql: scan table name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// ReadTable selects every row of name.
func (r *Repository) ReadTable(ctx context.Context, name string) (*table.Table, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT * FROM "+msFQN(name))
	if err != nil {
		return nil, fmt.Errorf("mssql: read %s: %w", name, err)
	}
	t, err := storage.ScanTable(rows, name, normalizeValue)
	if err != nil {
		return nil, fmt.Errorf("mssql: %w", err)
	}
	return t, nil
}

// normalizeValue renders UNIQUEIDENTIFIER columns in their canonical text
// form; the driver hands them back as raw, byte-swapped bytes.
func normalizeValue(dbType string, v any) any {
	if b, ok := v.([]byte); ok && dbType == "UNIQUEIDENTIFIER" {
		var u mssql.UniqueIdentifier
		if err := u.Scan(b); err == nil {
			return u.String()
		}
	}
	return storage.NormalizeSQLValue(dbType, v)
}

// ReplaceTable drops and recreates t.Name, then bulk-copies every row, all in
// one transaction.
func (r *Repository) ReplaceTable(ctx context.Context, t *table.Table) (int64, error) {
	stmts, err := ddl.ReplaceStatements(t.Name, t, Dialect)
	if err != nil {
		return 0, fmt.Errorf("mssql: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return 0, fmt.Errorf("mssql: exec: %w", err)
		}
	}

	copyFn := func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
		return copyIn(ctx, tx, t.Name, columns, rows)
	}
	n, err := storage.LoadBatches(ctx, t.ColumnNames(), t.Conform(), storage.LoadOptions{
		Table:     t.Name,
		BatchSize: r.cfg.BatchSize,
		Job:       r.cfg.Job,
		Logger:    r.cfg.Logger,
	}, copyFn)
	if err != nil {
		return n, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// copyIn performs one bulk insert into tableName inside tx.
func copyIn(ctx context.Context, tx *sql.Tx, tableName string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(msFQN(tableName), mssql.BulkOptions{}, columns...))
	if err != nil {
		return 0, fmt.Errorf("prepare bulk: %w", err)
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Exec executes a SQL statement against the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

// msIdent safely quotes a SQL Server identifier using [brackets], escaping ].
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// msFQN quotes a possibly schema-qualified name like "dbo.dim_date" to
// "[dbo].[dim_date]". If no dot is present, returns a single quoted ident.
func msFQN(name string) string { return ddl.QuoteWith(msIdent)(name) }
