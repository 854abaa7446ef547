// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) causes the init functions of each concrete storage backend to run,
// which in turn register their factories with the storage package:
//
//   - "postgres" (staretl/internal/storage/postgres)
//   - "mssql"    (staretl/internal/storage/mssql)
//   - "mysql"    (staretl/internal/storage/mysql)
//   - "sqlite"   (staretl/internal/storage/sqlite)
//
// Typical usage (in cmd/etl/main.go):
//
//	import _ "staretl/internal/storage/all"
//
//	src, err := storage.New(ctx, storage.Config{Kind: "postgres", DSN: dsn})
//	if err != nil {
//	    // handle error
//	}
//	defer src.Close()
package all

import (
	_ "staretl/internal/storage/mssql"
	_ "staretl/internal/storage/mysql"
	_ "staretl/internal/storage/postgres"
	_ "staretl/internal/storage/sqlite"
)
