// Package indexer walks a project, fingerprints each source file into
// blocks and stores them for clone detection.
//
// # Basic Usage
//
//	idx := indexer.New(store).WithLogger(logger)
//
//	stats, err := idx.IndexProject(ctx, "/path/to/project", &indexer.Config{
//	    BlockSize:    10,
//	    IncludeTests: true,
//	})
//
//	fmt.Printf("Indexed %d files (%d blocks) in %v\n",
//	    stats.FilesIndexed, stats.BlocksCreated, stats.Duration)
//
// # Pipeline
//
//  1. Discovery: walk the root, keep files with a configured extension,
//     skip hidden directories, vendor/ and _test.go files unless enabled
//  2. Incremental decision: compare the SHA-256 of each file with the
//     stored one and skip unchanged files
//  3. Statements and blocks: statement.ForPath picks a producer, one shared
//     chunker.BlockChunker turns the statements into blocks
//  4. Store: each batch of files replaces its file rows and blocks in one
//     transaction
//  5. Prune: files that disappeared from disk are deleted with their blocks
//
// Steps 2 and 3 run on a worker pool bounded by Config.Workers. The
// database connection is only taken once a batch is fully prepared.
//
// # Incremental Indexing
//
// Re-running IndexProject only re-fingerprints files whose content changed.
// Set Config.ForceReindex to redo every file. Changing Config.BlockSize for
// an already indexed project forces a full reindex as well, since blocks of
// different sizes never share a hash.
//
// # Run History
//
// Every successful call gets a RunID (a UUID) and is recorded with
// storage.RecordIndexRun. Counters are also published through the metrics
// package.
package indexer
