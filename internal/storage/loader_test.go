package storage

import (
	"context"
	"errors"
	"testing"
)

func rowsN(n int) [][]any {
	out := make([][]any, n)
	for i := range out {
		out[i] = []any{i, "x"}
	}
	return out
}

// TestLoadBatches_Basic verifies rows are grouped into batches and copyFn is
// called with the expected counts.
func TestLoadBatches_Basic(t *testing.T) {
	t.Parallel()

	var sizes []int
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		sizes = append(sizes, len(rows))
		return int64(len(rows)), nil
	}

	total, err := LoadBatches(context.Background(), []string{"c1", "c2"}, rowsN(7), LoadOptions{BatchSize: 3}, copyFn)
	if err != nil {
		t.Fatalf("LoadBatches error: %v", err)
	}
	if total != 7 {
		t.Fatalf("total rows %d, want 7", total)
	}
	if len(sizes) != 3 || sizes[0] != 3 || sizes[1] != 3 || sizes[2] != 1 {
		t.Fatalf("batch sizes %v, want [3 3 1]", sizes)
	}
}

// TestLoadBatches_ErrorPropagation ensures the first copy error is returned
// and no further batches are attempted.
func TestLoadBatches_ErrorPropagation(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("copy failed")
	var batches int
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		batches++
		if batches == 2 {
			return 0, wantErr
		}
		return int64(len(rows)), nil
	}

	total, err := LoadBatches(context.Background(), []string{"c"}, rowsN(5), LoadOptions{BatchSize: 2}, copyFn)
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if total != 2 || batches != 2 {
		t.Fatalf("total=%d batches=%d, want 2 and 2", total, batches)
	}
}

func TestLoadBatches_EmptyAndInvalid(t *testing.T) {
	t.Parallel()

	called := false
	copyFn := func(context.Context, []string, [][]any) (int64, error) { called = true; return 0, nil }

	total, err := LoadBatches(context.Background(), []string{"c"}, nil, LoadOptions{BatchSize: 10}, copyFn)
	if err != nil || total != 0 || called {
		t.Fatalf("empty input: total=%d err=%v called=%v", total, err, called)
	}
	if _, err := LoadBatches(context.Background(), nil, nil, LoadOptions{}, copyFn); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
	if _, err := LoadBatches(context.Background(), nil, nil, LoadOptions{BatchSize: 1}, nil); err == nil {
		t.Fatalf("expected error for nil copyFn")
	}
}

func TestLoadBatches_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	copyFn := func(context.Context, []string, [][]any) (int64, error) { return 1, nil }
	if _, err := LoadBatches(ctx, []string{"c"}, rowsN(3), LoadOptions{BatchSize: 1}, copyFn); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
