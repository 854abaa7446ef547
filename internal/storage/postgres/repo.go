// Package postgres implements a Postgres storage backend using pgx v5. Tables
// are read with a plain SELECT and written with DROP/CREATE followed by COPY,
// all inside one transaction per table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"staretl/internal/ddl"
	"staretl/internal/storage"
	"staretl/internal/table"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN       string // connection string for pgxpool
	Schema    string // namespace listed by ListTables; defaults to "public"
	BatchSize int    // rows per COPY call
	Job       string // metrics label
	Logger    *zap.Logger
}

// Repository is a Postgres-backed implementation of storage.Backend.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	if cfg.Schema == "" {
		cfg.Schema = "public"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = storage.DefaultBatchSize
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres: ping: %w", err)
	}
	closeFn := func() { pool.Close() }
	return &Repository{pool: pool, cfg: cfg}, closeFn, nil
}

// Dialect is the Postgres DDL dialect.
var Dialect = ddl.Dialect{
	QuoteFQN:   pgFQN,
	QuoteIdent: pgIdent,
	MapType:    MapType,
}

// MapType maps a logical column kind to a Postgres column type.
func MapType(k table.Kind) string {
	switch k {
	case table.KindInt:
		return "BIGINT"
	case table.KindFloat:
		return "DOUBLE PRECISION"
	case table.KindBool:
		return "BOOLEAN"
	case table.KindTimestamp:
		return "TIMESTAMP"
	case table.KindDate:
		return "DATE"
	default:
		return "TEXT"
	}
}

// ListTables returns the base tables of the configured schema.
func (r *Repository) ListTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	rows, err := r.pool.Query(ctx, q, r.cfg.Schema)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tables: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan table names: %w", err)
	}
	r.cfg.Logger.Debug("listed tables", zap.String("schema", r.cfg.Schema), zap.Int("count", len(names)))
	return names, nil
}

// ReadTable selects every row of name from the configured schema.
func (r *Repository) ReadTable(ctx context.Context, name string) (*table.Table, error) {
	rows, err := r.pool.Query(ctx, "SELECT * FROM "+pgFQN(r.cfg.Schema+"."+name))
	if err != nil {
		return nil, fmt.Errorf("postgres: read %s: %w", name, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	t := &table.Table{Name: name, Columns: make([]table.Column, len(fields))}
	for i, f := range fields {
		t.Columns[i] = table.Column{Name: f.Name}
	}

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("postgres: read %s: %w", name, err)
		}
		for i, v := range vals {
			vals[i] = normalizeValue(v)
		}
		t.Rows = append(t.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read %s: %w", name, err)
	}

	t.InferKinds()
	return t, nil
}

// normalizeValue converts pgx's decoded values into the plain Go types the
// table package works with.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	case pgtype.Numeric:
		if !t.Valid {
			return nil
		}
		f, err := t.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		return uuid.UUID(t).String()
	case []byte:
		return string(t)
	default:
		return v
	}
}

// ReplaceTable drops and recreates t.Name in the configured schema, then
// COPYs every row, all in one transaction.
func (r *Repository) ReplaceTable(ctx context.Context, t *table.Table) (int64, error) {
	fqn := r.cfg.Schema + "." + t.Name
	stmts, err := ddl.ReplaceStatements(fqn, t, Dialect)
	if err != nil {
		return 0, fmt.Errorf("postgres: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, s := range stmts {
		if _, err := tx.Exec(ctx, s); err != nil {
			return 0, fmt.Errorf("postgres: exec %q: %w", firstLine(s), err)
		}
	}

	id := splitFQN(fqn)
	copyFn := func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
		n, err := tx.CopyFrom(ctx, id, columns, pgx.CopyFromRows(rows))
		if err != nil {
			return n, copyError(err)
		}
		return n, nil
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
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit: %w", err)
	}
	return n, nil
}

// copyError surfaces the server's detail message when COPY is rejected.
func copyError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("copy: %s (%s): %w", pgErr.Detail, pgErr.SQLState(), err)
	}
	return fmt.Errorf("copy: %w", err)
}

// Exec runs an arbitrary statement.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	_, err := r.pool.Exec(ctx, sql)
	return err
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return pgx.Identifier{id}.Sanitize() }

// pgFQN quotes a possibly schema-qualified name like "public.dim_date" to
// "public"."dim_date". If no dot is present, returns a single quoted ident.
func pgFQN(name string) string { return splitFQN(name).Sanitize() }

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
// If no dot is present, returns {"table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
