// Package sqlite implements a SQLite-backed storage.Backend using
// database/sql. It performs batched INSERTs inside a transaction; SQLite does
// not have a dedicated bulk-load API like Postgres COPY, but transactions keep
// performance acceptable for moderate volumes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"staretl/internal/ddl"
	"staretl/internal/storage"
	"staretl/internal/table"
)

// Repository is a SQLite-backed implementation of storage.Backend.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository opens a SQLite connection using the provided DSN and returns
// a Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = storage.DefaultBatchSize
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One connection: the job is sequential and a single handle keeps
	// in-memory databases consistent.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// Dialect is the SQLite DDL dialect.
var Dialect = ddl.Dialect{
	QuoteFQN:   ddl.QuoteWith(sqlIdent),
	QuoteIdent: sqlIdent,
	MapType:    MapType,
}

// MapType maps a logical column kind to a SQLite column type. The declared
// DATE/TIMESTAMP types make the driver return time.Time on read.
func MapType(k table.Kind) string {
	switch k {
	case table.KindInt, table.KindBool:
		return "INTEGER"
	case table.KindFloat:
		return "REAL"
	case table.KindTimestamp:
		return "TIMESTAMP"
	case table.KindDate:
		return "DATE"
	default:
		return "TEXT"
	}
}

// ListTables returns user tables from sqlite_master.
func (r *Repository) ListTables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("sqlite: scan table name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// ReadTable selects every row of name.
func (r *Repository) ReadTable(ctx context.Context, name string) (*table.Table, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT * FROM "+sqlFQN(name))
	if err != nil {
		return nil, fmt.Errorf("sqlite: read %s: %w", name, err)
	}
	t, err := storage.ScanTable(rows, name, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return t, nil
}

// ReplaceTable drops and recreates t.Name, then inserts every row.
func (r *Repository) ReplaceTable(ctx context.Context, t *table.Table) (int64, error) {
	stmts, err := ddl.ReplaceStatements(t.Name, t, Dialect)
	if err != nil {
		return 0, fmt.Errorf("sqlite: %w", err)
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
		BatchSize: r.cfg.BatchSize,
		Job:       r.cfg.Job,
		Logger:    r.cfg.Logger,
	}, copyFn)
}

// CopyFrom inserts the given rows into tableName using a single transaction
// and a prepared INSERT statement.
//
// It returns the number of rows successfully inserted or an error. len(row)
// must equal len(columns) for every row.
func (r *Repository) CopyFrom(
	ctx context.Context,
	tableName string,
	columns []string,
	rows [][]any,
) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = sqlIdent(c)
		placeholders[i] = "?"
	}
	stmtSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		sqlFQN(tableName),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		if len(row) != len(columns) {
			_ = tx.Rollback()
			return 0, fmt.Errorf("sqlite: CopyFrom: row length %d != columns length %d", len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("sqlite: insert into %s: %w", tableName, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return inserted, nil
}

// Exec executes an arbitrary SQL statement (typically DDL).
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sql); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

// sqlIdent quotes an identifier with double quotes.
func sqlIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

func sqlFQN(name string) string { return ddl.QuoteWith(sqlIdent)(name) }
