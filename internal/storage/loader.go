package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"staretl/internal/metrics"
)

// DefaultBatchSize is the number of rows per bulk-insert call when a Config
// does not set one.
const DefaultBatchSize = 5000

// CopyFn abstracts a backend's bulk insert capability. Implementations insert
// the provided rows (aligned to columns) and return the number of rows
// inserted.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadOptions controls LoadBatches.
type LoadOptions struct {
	Table     string
	BatchSize int
	Job       string
	Logger    *zap.Logger
}

// LoadBatches splits rows into batches of opts.BatchSize and calls copyFn
// for each. It returns the total reported by copyFn and the first error.
// A debug line with running totals and rows/sec is logged per batch.
func LoadBatches(
	ctx context.Context,
	columns []string,
	rows [][]any,
	opts LoadOptions,
	copyFn CopyFn,
) (int64, error) {
	if opts.BatchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var (
		total   int64
		batches int64
		start   = time.Now()
	)
	for lo := 0; lo < len(rows); lo += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		hi := min(lo+opts.BatchSize, len(rows))

		n, err := copyFn(ctx, columns, rows[lo:hi])
		total += n
		if err != nil {
			log.Warn("loader: copy failed",
				zap.String("table", opts.Table),
				zap.Int64("after", n),
				zap.Int64("total", total),
				zap.Error(err))
			return total, err
		}
		batches++
		metrics.RecordBatches(opts.Job, opts.Table, 1)

		elapsed := time.Since(start)
		rps := float64(0)
		if elapsed > 0 {
			rps = float64(total) / elapsed.Seconds()
		}
		log.Debug("loader: batch flushed",
			zap.String("table", opts.Table),
			zap.Int64("batch", batches),
			zap.Int64("inserted", n),
			zap.Int64("total_inserted", total),
			zap.Float64("rps", rps),
			zap.Duration("elapsed", elapsed.Truncate(time.Millisecond)))
	}
	return total, nil
}
