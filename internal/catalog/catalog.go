// Package catalog gives transforms name-addressed access to source tables.
//
// Two strategies are provided. ReadAll lists every table in the source's
// default namespace and reads each one up front. NewLazy reads a table the
// first time it is asked for and keeps it for later lookups, so only the
// tables a job actually uses are ever fetched.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"staretl/internal/storage"
	"staretl/internal/table"
)

// ErrTableNotFound is returned when a requested table is not in the source.
var ErrTableNotFound = errors.New("table not found")

// Mode names accepted by New.
const (
	ModeLazy  = "lazy"
	ModeEager = "eager"
)

// Catalog resolves a source table by name.
type Catalog interface {
	Table(ctx context.Context, name string) (*table.Table, error)
}

// New builds a catalog over src using mode ("lazy" or "eager"; empty means
// lazy). The eager mode reads every table before returning.
func New(ctx context.Context, src storage.Source, mode string, logger *zap.Logger) (Catalog, error) {
	switch mode {
	case "", ModeLazy:
		return NewLazy(src, logger), nil
	case ModeEager:
		return ReadAll(ctx, src, logger)
	default:
		return nil, fmt.Errorf("catalog: unknown mode %q", mode)
	}
}

// Eager is a fully materialized catalog keyed by table name.
type Eager map[string]*table.Table

// ReadAll lists the tables of src and reads every one of them. Any failure
// aborts the read; no partial catalog is returned.
func ReadAll(ctx context.Context, src storage.Source, logger *zap.Logger) (Eager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	names, err := src.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: list tables: %w", err)
	}
	out := make(Eager, len(names))
	for _, name := range names {
		t, err := src.ReadTable(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("catalog: read %s: %w", name, err)
		}
		logger.Debug("extracted table", zap.String("table", name), zap.Int("rows", t.Len()))
		out[name] = t
	}
	return out, nil
}

// Table implements Catalog.
func (e Eager) Table(_ context.Context, name string) (*table.Table, error) {
	t, ok := e[name]
	if !ok {
		return nil, fmt.Errorf("catalog: %s: %w", name, ErrTableNotFound)
	}
	return t, nil
}

// Names returns the table names in the catalog, sorted.
func (e Eager) Names() []string {
	out := make([]string, 0, len(e))
	for n := range e {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Lazy fetches tables on first use and memoizes them.
type Lazy struct {
	src    storage.Source
	logger *zap.Logger

	mu     sync.Mutex
	known  map[string]bool
	tables map[string]*table.Table
}

// NewLazy returns a Lazy catalog over src. Nothing is read until Table is
// called.
func NewLazy(src storage.Source, logger *zap.Logger) *Lazy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lazy{src: src, logger: logger, tables: make(map[string]*table.Table)}
}

// Table returns the named table, reading it from the source on first use.
// The table list is fetched once and used to report missing tables as
// ErrTableNotFound. Failed reads are not memoized.
func (l *Lazy) Table(ctx context.Context, name string) (*table.Table, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t, ok := l.tables[name]; ok {
		return t, nil
	}
	if l.known == nil {
		names, err := l.src.ListTables(ctx)
		if err != nil {
			return nil, fmt.Errorf("catalog: list tables: %w", err)
		}
		l.known = make(map[string]bool, len(names))
		for _, n := range names {
			l.known[n] = true
		}
	}
	if !l.known[name] {
		return nil, fmt.Errorf("catalog: %s: %w", name, ErrTableNotFound)
	}

	t, err := l.src.ReadTable(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", name, err)
	}
	l.logger.Debug("extracted table", zap.String("table", name), zap.Int("rows", t.Len()))
	l.tables[name] = t
	return t, nil
}
