package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"staretl/internal/config"
	"staretl/internal/etl"
	"staretl/internal/logging"
	"staretl/internal/metrics"
	"staretl/internal/metrics/datadog"
	"staretl/internal/metrics/prompush"
	"staretl/internal/storage"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "staretl/internal/storage/all"
)

// main is the entry point for the ETL binary. It loads the configuration,
// opens the source and target stores and runs the star-schema job once.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the binary and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("etl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		envFile  string
		validate bool
		verbose  bool
	)
	fs.StringVar(&envFile, "env", "", "dotenv file to load (default .env when present)")
	fs.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	fs.BoolVar(&verbose, "v", false, "also write log records to stderr")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: etl [flags]\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\n%s\n", config.Usage())
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	issues := cfg.Validate()
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fmt.Fprintln(stderr, "Configuration is invalid")
		return 1
	}
	if validate {
		fmt.Fprintln(stderr, "Configuration is valid")
		return 0
	}

	logger, closeLog, err := logging.New(logging.Options{File: cfg.Log.File, Level: cfg.Log.Level, Console: verbose})
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	defer closeLog()

	flush := setupMetrics(cfg, logger)
	defer flush()

	start := time.Now()
	rep, err := execute(ctx, cfg, logger, stdout)
	if err != nil {
		logger.Error("ETL job failed", zap.String("stage", etl.StageExtract), zap.Error(err))
		fmt.Fprintln(stdout, etl.FailureMessage)
	} else {
		err = rep.Err()
	}
	if err == nil {
		logger.Info("completed", zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)))
		return 0
	}
	if cfg.StrictExit {
		return 1
	}
	return 0
}

// execute opens both stores and runs the job. Errors returned here happen
// before the first step.
func execute(ctx context.Context, cfg *config.Config, logger *zap.Logger, stdout io.Writer) (etl.Report, error) {
	src, err := open(ctx, cfg, cfg.Source, logger)
	if err != nil {
		return etl.Report{}, err
	}
	defer src.Close()

	dst, err := open(ctx, cfg, cfg.Target, logger)
	if err != nil {
		return etl.Report{}, err
	}
	defer dst.Close()

	r := &etl.Runner{
		Source:      src,
		CatalogMode: cfg.CatalogMode,
		Target:      dst,
		Job:         cfg.Job,
		Logger:      logger,
		Out:         stdout,
	}
	return r.Run(ctx), nil
}

func open(ctx context.Context, cfg *config.Config, side config.Side, logger *zap.Logger) (storage.Backend, error) {
	dsn, err := cfg.DSN(side)
	if err != nil {
		return nil, err
	}
	logger.Debug("opening store",
		zap.String("side", side.Prefix),
		zap.String("kind", side.Kind),
		zap.String("dsn", logging.SanitizeDSN(dsn)),
	)
	b, err := storage.New(ctx, storage.Config{
		Kind:      side.Kind,
		DSN:       dsn,
		Job:       cfg.Job,
		BatchSize: cfg.BatchSize,
		Logger:    logger.With(zap.String("store", side.Prefix)),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s (%s): %w", side.Prefix, side.Kind, err)
	}
	return b, nil
}

// setupMetrics installs the configured metrics backend and returns the
// function that flushes it.
func setupMetrics(cfg *config.Config, logger *zap.Logger) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch cfg.Metrics.Backend {
	case "pushgateway":
		b, err = prompush.NewBackend(cfg.Job, cfg.Metrics.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{Addr: cfg.Metrics.DatadogAddr})
	case "", "none":
		logger.Debug("metrics: disabled")
		return func() {}
	default:
		logger.Warn("metrics: unknown backend; metrics disabled", zap.String("backend", cfg.Metrics.Backend))
		return func() {}
	}
	if err != nil {
		logger.Warn("metrics: init failed; using nop", zap.String("backend", cfg.Metrics.Backend), zap.Error(err))
		return func() {}
	}

	logger.Info("metrics: enabled", zap.String("backend", cfg.Metrics.Backend), zap.String("job", cfg.Job))
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			logger.Warn("metrics: flush error", zap.Error(err))
		}
	}
}
