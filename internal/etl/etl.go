// Package etl runs the star-schema job: extract from a source store, build
// each target table, and replace it in the target store.
//
// Run executes the steps strictly in order and stops at the first failure.
// Tables loaded before the failure stay in the target. The outcome comes
// back as a Report value; Run itself never returns an error or panics.
package etl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"staretl/internal/catalog"
	"staretl/internal/metrics"
	"staretl/internal/star"
	"staretl/internal/storage"
	"staretl/internal/table"
)

// Stage names used in step results, logs and metrics.
const (
	StageExtract   = "extract"
	StageTransform = "transform"
	StageLoad      = "load"
)

// FailureMessage is printed to Out when the job fails.
const FailureMessage = "ETL job failed. Check log for details."

// StepResult is the outcome of one step.
type StepResult struct {
	Stage    string
	Table    string // target table; empty for extract
	Rows     int64
	Duration time.Duration
	Err      error
}

// StageError ties a failure to the step that produced it.
type StageError struct {
	Stage string
	Table string
	Err   error
}

func (e *StageError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Table, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Report lists the steps that ran, in order.
type Report struct {
	Steps  []StepResult
	Failed *StepResult // the last step, when it failed
}

// Err returns a *StageError for the failed step, or nil.
func (r Report) Err() error {
	if r.Failed == nil {
		return nil
	}
	return &StageError{Stage: r.Failed.Stage, Table: r.Failed.Table, Err: r.Failed.Err}
}

// Loaded returns the names of the tables written to the target.
func (r Report) Loaded() []string {
	var out []string
	for _, s := range r.Steps {
		if s.Stage == StageLoad && s.Err == nil {
			out = append(out, s.Table)
		}
	}
	return out
}

// Runner wires the job together. Either Catalog or Source must be set.
type Runner struct {
	// Source is read through a catalog built in CatalogMode when Catalog is
	// nil. In eager mode the full read is the extract step.
	Source      storage.Source
	CatalogMode string
	Catalog     catalog.Catalog

	Target storage.Repository

	// Jobs returns the tables to build, in load order. Nil means star.Build.
	Jobs func(catalog.Catalog) []star.Job

	Job    string      // metrics job label
	Logger *zap.Logger // persistent log; nil means no logging
	Out    io.Writer   // console; nil discards
}

// Run executes the job and reports what happened. A failure is logged with
// its stage, table and cause, and FailureMessage is printed to Out.
func (r *Runner) Run(ctx context.Context) Report {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	out := r.Out
	if out == nil {
		out = io.Discard
	}

	var rep Report
	record := func(res StepResult) bool {
		rep.Steps = append(rep.Steps, res)
		metrics.RecordStep(r.Job, res.Stage, res.Table, res.Err, res.Duration)
		if res.Err == nil {
			return true
		}
		rep.Failed = &rep.Steps[len(rep.Steps)-1]
		logger.Error("ETL job failed",
			zap.String("stage", res.Stage),
			zap.String("table", res.Table),
			zap.Duration("duration", res.Duration),
			zap.Error(res.Err),
		)
		fmt.Fprintln(out, FailureMessage)
		return false
	}

	logger.Info("ETL job started", zap.String("job", r.Job))
	start := time.Now()

	cat := r.Catalog
	if cat == nil {
		res := r.extract(ctx, logger, &cat)
		if !record(res) {
			return rep
		}
	}

	jobs := r.Jobs
	if jobs == nil {
		jobs = star.Build
	}
	for _, job := range jobs(cat) {
		var built *table.Table
		res := step(StageTransform, job.Table, func() (n int64, err error) {
			built, err = job.Build(ctx)
			if err != nil {
				return 0, err
			}
			if built == nil {
				return 0, errors.New("no table produced")
			}
			return int64(built.Len()), nil
		})
		if !record(res) {
			return rep
		}
		metrics.RecordRows(r.Job, job.Table, "built", res.Rows)
		logger.Debug("Built table", zap.String("table", job.Table), zap.Int64("rows", res.Rows))

		res = step(StageLoad, job.Table, func() (int64, error) {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			return r.Target.ReplaceTable(ctx, built)
		})
		if !record(res) {
			return rep
		}
		metrics.RecordRows(r.Job, job.Table, "loaded", res.Rows)
		logger.Info("Loaded table",
			zap.String("table", job.Table),
			zap.Int64("rows", res.Rows),
			zap.Duration("duration", res.Duration),
		)
		fmt.Fprintf(out, "Loaded: %s\n", job.Table)
	}

	logger.Info("ETL job finished",
		zap.String("job", r.Job),
		zap.Int("tables", len(rep.Loaded())),
		zap.Duration("duration", time.Since(start)),
	)
	return rep
}

// extract builds the catalog from Source and stores it in *cat. The lazy
// catalog reads nothing here.
func (r *Runner) extract(ctx context.Context, logger *zap.Logger, cat *catalog.Catalog) StepResult {
	return step(StageExtract, "", func() (int64, error) {
		if r.Source == nil {
			return 0, errors.New("no source configured")
		}
		c, err := catalog.New(ctx, r.Source, r.CatalogMode, logger)
		if err != nil {
			return 0, err
		}
		*cat = c
		var n int64
		if e, ok := c.(catalog.Eager); ok {
			for _, t := range e {
				n += int64(t.Len())
			}
		}
		return n, nil
	})
}

// step times fn and converts a panic into the step's error.
func step(stage, tbl string, fn func() (int64, error)) (res StepResult) {
	res = StepResult{Stage: stage, Table: tbl}
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
		}
		res.Duration = time.Since(start)
	}()
	res.Rows, res.Err = fn()
	return res
}
