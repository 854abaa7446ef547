// Package logging builds the job's zap logger.
//
// Records go to an append-only file using zap's console encoder, one line
// per record with an ISO8601 timestamp, the level, the message and the
// structured fields. Error records carry a stack trace.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures New.
type Options struct {
	File    string // log file path; created if missing, appended to otherwise
	Level   string // debug, info, warn, error
	Console bool   // also write records to stderr
}

// New returns a logger writing to opts.File and a function that syncs the
// logger and closes the file. Call it before exiting.
func New(opts Options) (*zap.Logger, func(), error) {
	if opts.File == "" {
		return nil, nil, fmt.Errorf("logging: no log file")
	}
	level := zapcore.DebugLevel
	if opts.Level != "" {
		l, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: %w", err)
		}
		level = l
	}

	// zap.Open appends to the file, creating it when missing.
	abs, err := filepath.Abs(opts.File)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: %w", err)
	}
	sink, closeSink, err := zap.Open(abs)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: open %s: %w", opts.File, err)
	}

	enc := zapcore.NewConsoleEncoder(encoderConfig())
	cores := []zapcore.Core{zapcore.NewCore(enc, sink, level)}
	if opts.Console {
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level))
	}

	logger := zap.New(zapcore.NewTee(cores...),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	)
	closeFn := func() {
		_ = logger.Sync()
		closeSink()
	}
	return logger, closeFn, nil
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.CallerKey = zapcore.OmitKey
	return cfg
}
