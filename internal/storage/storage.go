// Package storage contains the storage-agnostic contracts used by the ETL:
// a Source that lists and reads whole tables, a Repository that replaces
// target tables, and a registry that maps a backend kind ("postgres",
// "mssql", "mysql", "sqlite") to its constructor.
//
// Concrete backends live in subpackages and register themselves from init();
// importing internal/storage/all enables every built-in backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"staretl/internal/table"
)

// ErrUnknownKind is returned by New when no backend is registered for a kind.
var ErrUnknownKind = errors.New("unknown storage kind")

// Config is the minimal configuration needed to open a backend.
type Config struct {
	// Kind selects the backend, e.g. "postgres".
	Kind string
	// DSN is passed through to the backend; validation is backend-specific.
	DSN string
	// Job labels batch metrics emitted while loading.
	Job string
	// BatchSize bounds the rows sent per bulk-insert call. Zero uses
	// DefaultBatchSize.
	BatchSize int
	// Logger receives backend logs. Nil means no logging.
	Logger *zap.Logger
}

// Source reads whole tables from the default namespace of a store.
type Source interface {
	// ListTables returns the names of all base tables in the default
	// namespace (e.g. Postgres "public").
	ListTables(ctx context.Context) ([]string, error)

	// ReadTable returns the full contents of the named table with values
	// normalized to plain Go types and column kinds inferred. Row order is
	// whatever the store returns.
	ReadTable(ctx context.Context, name string) (*table.Table, error)
}

// Repository writes tables to a target store.
type Repository interface {
	// ReplaceTable drops any table named t.Name, creates it with t's columns
	// and bulk-inserts every row. It returns the number of rows inserted.
	ReplaceTable(ctx context.Context, t *table.Table) (int64, error)
}

// Backend is an open connection to one store. Every built-in backend can act
// as both source and target.
type Backend interface {
	Source
	Repository

	// Close releases the underlying connection(s). Call once.
	Close()
}

// Factory constructs a Backend from a Config.
type Factory func(ctx context.Context, cfg Config) (Backend, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. It is called from the
// backend packages' init functions.
//
// Panics if kind is empty, f is nil, or kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New opens a Backend using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Backend, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: kind=%q: %w", cfg.Kind, ErrUnknownKind)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
