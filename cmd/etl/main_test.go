package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sqliteEnv points both stores at files in a temp dir and runs the test from
// there so no stray .env is picked up.
func sqliteEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("DB_KIND", "sqlite")
	t.Setenv("DBS_NAME", filepath.Join(dir, "olist.db"))
	t.Setenv("DBT_NAME", filepath.Join(dir, "dw.db"))
	t.Setenv("LOG_FILE", filepath.Join(dir, "olist.log"))
	t.Setenv("METRICS_BACKEND", "none")
	return dir
}

func TestRun_ValidateOnly(t *testing.T) {
	sqliteEnv(t)
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-validate"}, &stdout, &stderr)
	assert.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stderr.String(), "Configuration is valid")
}

func TestRun_InvalidConfig(t *testing.T) {
	sqliteEnv(t)
	t.Setenv("CATALOG_MODE", "sometimes")
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), nil, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "error: CATALOG_MODE")
}

func TestRun_MissingEnvFile(t *testing.T) {
	sqliteEnv(t)
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run(context.Background(), []string{"-env", "nope.env"}, &stdout, &stderr))
}

func TestRun_JobFailureExitCode(t *testing.T) {
	for _, tc := range []struct {
		strict string
		want   int
	}{{"true", 1}, {"false", 0}} {
		t.Run("strict="+tc.strict, func(t *testing.T) {
			dir := sqliteEnv(t)
			t.Setenv("STRICT_EXIT", tc.strict)

			var stdout, stderr bytes.Buffer
			// the source database is empty, so the first transform fails
			code := run(context.Background(), nil, &stdout, &stderr)
			assert.Equal(t, tc.want, code)
			assert.Equal(t, "ETL job failed. Check log for details.\n", stdout.String())

			data, err := os.ReadFile(filepath.Join(dir, "olist.log"))
			require.NoError(t, err)
			assert.Contains(t, string(data), "ETL job failed")
			assert.Contains(t, string(data), "olist_customers_dataset")
		})
	}
}

func TestRun_HelpFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run(context.Background(), []string{"-h"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "DB_USER")
}
