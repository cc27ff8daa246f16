// Package storage provides SQLite-based persistence for block fingerprints.
//
// The storage layer manages:
//   - Project metadata (root path, block size)
//   - File paths and SHA-256 content hashes
//   - Blocks: 8-byte fingerprints with their line spans
//   - A history of index runs
//
// # Database Schema
//
// Tables:
//   - projects: one row per indexed root
//   - files: relative path, content hash, statement count, parse error
//   - blocks: hash BLOB(8), index_in_file, start_line, end_line
//   - index_runs: per-run counters keyed by run ID
//
// Fingerprints are stored as the big-endian bytes of types.Hash, so databases
// written by different builds can be compared directly.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage("~/.gocpd/gocpd.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// # Transactions
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	if err := tx.UpsertFile(ctx, file); err != nil {
//	    return err
//	}
//	if err := tx.InsertBlocks(ctx, file.ID, blocks); err != nil {
//	    return err
//	}
//	return tx.Commit()
//
// # Duplicate Lookup
//
// ListDuplicateBlocks returns every block whose hash occurs more than once in
// a project, ordered by file path and index. internal/detector groups these
// into clone reports.
//
// # Drivers
//
// The default build uses modernc.org/sqlite. Build with -tags cgo_sqlite to
// use github.com/mattn/go-sqlite3 instead.
package storage
