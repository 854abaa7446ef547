package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staretl/internal/storage"
)

func TestFactory_UsesNewRepositoryHook(t *testing.T) {
	orig := newRepository
	t.Cleanup(func() { newRepository = orig })

	var got Config
	closed := false
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		got = cfg
		return &Repository{cfg: cfg}, func() { closed = true }, nil
	}

	b, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: "hook.db", Job: "olist_etl", BatchSize: 7})
	require.NoError(t, err)
	assert.Equal(t, "hook.db", got.DSN)
	assert.Equal(t, "olist_etl", got.Job)
	assert.Equal(t, 7, got.BatchSize)
	assert.NotNil(t, got.Logger)

	b.Close()
	assert.True(t, closed)
}

func TestFactory_PropagatesError(t *testing.T) {
	orig := newRepository
	t.Cleanup(func() { newRepository = orig })

	boom := errors.New("boom")
	newRepository = func(context.Context, Config) (*Repository, func(), error) { return nil, nil, boom }

	_, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: "x.db"})
	assert.ErrorIs(t, err, boom)
}

func TestFactory_RealDatabase(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "real.db")
	b, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: dsn})
	require.NoError(t, err)
	defer b.Close()

	names, err := b.ListTables(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}
