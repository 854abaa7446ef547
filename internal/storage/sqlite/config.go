package sqlite

import "go.uber.org/zap"

// Config holds SQLite backend configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:olist.db?_pragma=foreign_keys(1)"
	//   "olist.db" (interpreted by the driver)
	DSN string

	// BatchSize is the number of rows inserted per transaction.
	BatchSize int

	// Job labels batch metrics.
	Job string

	Logger *zap.Logger
}
