package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/mod/modfile"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/gocpd/internal/chunker"
	"github.com/dshills/gocpd/internal/metrics"
	"github.com/dshills/gocpd/internal/statement"
	"github.com/dshills/gocpd/internal/storage"
	"github.com/dshills/gocpd/pkg/types"
)

// Indexer coordinates the fingerprinting pipeline: read -> statements -> blocks -> store
type Indexer struct {
	storage storage.Storage
	logger  *slog.Logger
}

// Config contains configuration for the indexer
type Config struct {
	BlockSize     int      // Statements per block (default: chunker.DefaultBlockSize)
	Workers       int      // Number of concurrent workers (default: runtime.NumCPU())
	BatchSize     int      // Number of files to commit per transaction (default: 20)
	IncludeTests  bool     // Whether to index test files
	IncludeVendor bool     // Whether to index vendor directory
	ForceReindex  bool     // Re-fingerprint files even when their content is unchanged
	Extensions    []string // File extensions to index (default: .go)
}

// DefaultConfig returns the configuration used when IndexProject gets nil
func DefaultConfig() *Config {
	return &Config{
		BlockSize:    chunker.DefaultBlockSize,
		Workers:      runtime.NumCPU(),
		BatchSize:    20,
		IncludeTests: true,
		Extensions:   []string{".go"},
	}
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	RunID         string
	ProjectID     int64
	FilesIndexed  int
	FilesSkipped  int
	FilesFailed   int
	FilesPruned   int
	BlocksCreated int
	Duration      time.Duration
	ErrorMessages []string
}

// New creates a new Indexer instance
func New(store storage.Storage) *Indexer {
	return &Indexer{
		storage: store,
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger used for progress and per-file failures
func (idx *Indexer) WithLogger(logger *slog.Logger) *Indexer {
	if logger != nil {
		idx.logger = logger
	}
	return idx
}

// indexRun is the shared state of one IndexProject call
type indexRun struct {
	project  *storage.Project
	chunker  *chunker.BlockChunker
	existing map[string]*storage.File
	force    bool
	logger   *slog.Logger

	indexed atomic.Int32
	skipped atomic.Int32
	failed  atomic.Int32
	blocks  atomic.Int32

	mu     sync.Mutex
	errors []string
}

func (r *indexRun) fail(path string, err error) {
	r.failed.Add(1)
	metrics.FilesProcessed.WithLabelValues(metrics.OutcomeFailed).Inc()
	r.logger.Warn("failed to index file", "path", path, "error", err)

	r.mu.Lock()
	r.errors = append(r.errors, fmt.Sprintf("%s: %v", path, err))
	r.mu.Unlock()
}

func (r *indexRun) stored(result *fileResult) {
	r.indexed.Add(1)
	r.blocks.Add(int32(len(result.blocks)))
	metrics.FilesProcessed.WithLabelValues(metrics.OutcomeIndexed).Inc()
	metrics.BlocksCreated.Add(float64(len(result.blocks)))
}

// fileResult is a file prepared outside of any transaction
type fileResult struct {
	relPath     string
	contentHash [32]byte
	modTime     time.Time
	sizeBytes   int64
	statements  int
	parseError  *string
	blocks      []types.Block
	skip        bool
}

// IndexProject fingerprints every matching file under rootPath
func (idx *Indexer) IndexProject(ctx context.Context, rootPath string, config *Config) (*Statistics, error) {
	config = normalizeConfig(config)

	blockChunker, err := chunker.New(config.BlockSize)
	if err != nil {
		return nil, err
	}

	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	startTime := time.Now()
	stats := &Statistics{
		RunID:         uuid.NewString(),
		ErrorMessages: make([]string, 0),
	}
	logger := idx.logger.With("run_id", stats.RunID, "root", absRoot)

	stats, err = idx.indexProject(ctx, absRoot, config, blockChunker, stats, logger)
	if err != nil {
		metrics.IndexRuns.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.IndexRuns.WithLabelValues("ok").Inc()

	stats.Duration = time.Since(startTime)
	run := &storage.IndexRun{
		RunID:         stats.RunID,
		ProjectID:     stats.ProjectID,
		FilesIndexed:  stats.FilesIndexed,
		FilesSkipped:  stats.FilesSkipped,
		FilesFailed:   stats.FilesFailed,
		BlocksCreated: stats.BlocksCreated,
		Duration:      stats.Duration,
	}
	if err := idx.storage.RecordIndexRun(ctx, run); err != nil {
		logger.Warn("failed to record index run", "error", err)
	}

	logger.Info("indexing complete",
		"indexed", stats.FilesIndexed,
		"skipped", stats.FilesSkipped,
		"failed", stats.FilesFailed,
		"pruned", stats.FilesPruned,
		"blocks", stats.BlocksCreated,
		"duration", stats.Duration)
	return stats, nil
}

func (idx *Indexer) indexProject(ctx context.Context, rootPath string, config *Config,
	blockChunker *chunker.BlockChunker, stats *Statistics, logger *slog.Logger) (*Statistics, error) {

	project, err := idx.getOrCreateProject(ctx, rootPath, config.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create project: %w", err)
	}

	force := config.ForceReindex
	if project.BlockSize != config.BlockSize {
		// Hashes of different window sizes never match, so everything is redone
		logger.Info("block size changed, reindexing all files",
			"old", project.BlockSize, "new", config.BlockSize)
		project.BlockSize = config.BlockSize
		force = true
	}

	existingFiles, err := idx.storage.ListFiles(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexed files: %w", err)
	}
	existing := make(map[string]*storage.File, len(existingFiles))
	for _, f := range existingFiles {
		existing[f.FilePath] = f
	}

	files, err := discoverFiles(rootPath, config)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	logger.Debug("discovered files", "count", len(files), "force", force)

	run := &indexRun{
		project:  project,
		chunker:  blockChunker,
		existing: existing,
		force:    force,
		logger:   logger,
	}
	if err := idx.indexFiles(ctx, run, files, config); err != nil {
		return nil, fmt.Errorf("failed to index files: %w", err)
	}

	pruned, err := idx.pruneFiles(ctx, rootPath, existing, files)
	if err != nil {
		return nil, fmt.Errorf("failed to prune removed files: %w", err)
	}

	if err := idx.updateProjectStats(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project stats: %w", err)
	}

	stats.ProjectID = project.ID
	stats.FilesIndexed = int(run.indexed.Load())
	stats.FilesSkipped = int(run.skipped.Load())
	stats.FilesFailed = int(run.failed.Load())
	stats.BlocksCreated = int(run.blocks.Load())
	stats.FilesPruned = pruned
	stats.ErrorMessages = append(stats.ErrorMessages, run.errors...)
	return stats, nil
}

func normalizeConfig(config *Config) *Config {
	if config == nil {
		return DefaultConfig()
	}
	cfg := *config
	if cfg.BlockSize == 0 {
		cfg.BlockSize = chunker.DefaultBlockSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{".go"}
	}
	return &cfg
}

// getOrCreateProject retrieves an existing project or creates a new one
func (idx *Indexer) getOrCreateProject(ctx context.Context, rootPath string, blockSize int) (*storage.Project, error) {
	project, err := idx.storage.GetProject(ctx, rootPath)
	if err == nil {
		return project, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	project = &storage.Project{
		RootPath:     rootPath,
		BlockSize:    blockSize,
		IndexVersion: storage.CurrentSchemaVersion,
	}
	if module, err := readModulePath(filepath.Join(rootPath, "go.mod")); err == nil {
		project.ModuleName = module
	}

	if err := idx.storage.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// discoverFiles finds all files with a configured extension in the project
func discoverFiles(rootPath string, config *Config) ([]string, error) {
	var files []string
	err := walkSources(rootPath, config, func(path string) error {
		files = append(files, path)
		return nil
	})
	return files, err
}

// HasSourceFiles reports whether IndexProject would find at least one file
// under rootPath
func HasSourceFiles(rootPath string, config *Config) bool {
	found := false
	_ = walkSources(rootPath, normalizeConfig(config), func(string) error {
		found = true
		return filepath.SkipAll
	})
	return found
}

// walkSources calls fn for every indexable file. Hidden directories are
// skipped, and so are vendor and _test.go files unless enabled.
func walkSources(rootPath string, config *Config, fn func(path string) error) error {
	return filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path == rootPath {
				return nil
			}
			if !config.IncludeVendor && d.Name() == "vendor" {
				return filepath.SkipDir
			}
			if strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !slices.Contains(config.Extensions, strings.ToLower(filepath.Ext(path))) {
			return nil
		}
		if !config.IncludeTests && strings.HasSuffix(path, "_test.go") {
			return nil
		}
		return fn(path)
	})
}

// indexFiles indexes files in batches, one transaction per batch
func (idx *Indexer) indexFiles(ctx context.Context, run *indexRun, files []string, config *Config) error {
	semaphore := make(chan struct{}, config.Workers)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < len(files); i += config.BatchSize {
		end := min(i+config.BatchSize, len(files))
		batch := files[i:end]

		g.Go(func() error {
			return idx.indexBatch(gctx, run, batch, semaphore)
		})
	}

	return g.Wait()
}

// indexBatch fingerprints a batch of files and stores them in one transaction.
// Preparation holds a semaphore slot but never the database connection.
func (idx *Indexer) indexBatch(ctx context.Context, run *indexRun, files []string, semaphore chan struct{}) error {
	results := make([]*fileResult, 0, len(files))
	for _, filePath := range files {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case semaphore <- struct{}{}:
		}

		result, err := prepareFile(run, filePath)
		<-semaphore

		if err != nil {
			run.fail(filePath, err)
			continue
		}
		if result.skip {
			run.skipped.Add(1)
			metrics.FilesProcessed.WithLabelValues(metrics.OutcomeSkipped).Inc()
			continue
		}
		results = append(results, result)
	}

	if len(results) == 0 {
		return nil
	}

	err := idx.storeBatch(ctx, run.project.ID, results)
	if err == nil {
		for _, result := range results {
			run.stored(result)
		}
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	// The batch rolled back as a whole; retry each file in its own
	// transaction so only the failing file is left unrecorded and is
	// picked up again by the next run.
	idx.logger.Warn("batch store failed, retrying per file", "files", len(results), "error", err)
	for _, result := range results {
		if err := idx.storeBatch(ctx, run.project.ID, []*fileResult{result}); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			run.fail(result.relPath, err)
			continue
		}
		run.stored(result)
	}
	return nil
}

// storeBatch writes prepared files in one transaction; any failure rolls back
// every file of the batch
func (idx *Indexer) storeBatch(ctx context.Context, projectID int64, results []*fileResult) error {
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, result := range results {
		if err := storeFile(ctx, tx, projectID, result); err != nil {
			return fmt.Errorf("%s: %w", result.relPath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// prepareFile reads, hashes and fingerprints one file
func prepareFile(run *indexRun, filePath string) (*fileResult, error) {
	relPath, err := filepath.Rel(run.project.RootPath, filePath)
	if err != nil {
		return nil, err
	}
	relPath = filepath.ToSlash(relPath)

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(filePath) //nolint:gosec // path comes from the project walk
	if err != nil {
		return nil, err
	}

	result := &fileResult{
		relPath:     relPath,
		contentHash: sha256.Sum256(content),
		modTime:     info.ModTime(),
		sizeBytes:   info.Size(),
	}

	if prev, ok := run.existing[relPath]; ok && !run.force && prev.ContentHash == result.contentHash {
		result.skip = true
		return result, nil
	}

	start := time.Now()
	statements, parseErr := statement.ForPath(relPath).Statements(relPath, content)
	if parseErr != nil {
		msg := parseErr.Error()
		result.parseError = &msg
	}
	if statements == nil {
		statements = []types.Statement{}
	}

	blocks, err := run.chunker.Chunk(relPath, statements)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk file: %w", err)
	}
	metrics.ChunkDuration.Observe(time.Since(start).Seconds())

	result.statements = len(statements)
	result.blocks = blocks
	return result, nil
}

// storeFile replaces the file record and its blocks
func storeFile(ctx context.Context, store storage.Storage, projectID int64, result *fileResult) error {
	file := &storage.File{
		ProjectID:      projectID,
		FilePath:       result.relPath,
		ContentHash:    result.contentHash,
		ModTime:        result.modTime,
		SizeBytes:      result.sizeBytes,
		StatementCount: result.statements,
		ParseError:     result.parseError,
	}
	if err := store.UpsertFile(ctx, file); err != nil {
		return err
	}
	if err := store.DeleteBlocksByFile(ctx, file.ID); err != nil {
		return fmt.Errorf("failed to delete old blocks: %w", err)
	}
	if err := store.InsertBlocks(ctx, file.ID, result.blocks); err != nil {
		return fmt.Errorf("failed to store blocks: %w", err)
	}
	return nil
}

// pruneFiles deletes records of files that are no longer on disk
func (idx *Indexer) pruneFiles(ctx context.Context, rootPath string, existing map[string]*storage.File, discovered []string) (int, error) {
	seen := make(map[string]struct{}, len(discovered))
	for _, path := range discovered {
		rel, err := filepath.Rel(rootPath, path)
		if err != nil {
			continue
		}
		seen[filepath.ToSlash(rel)] = struct{}{}
	}

	pruned := 0
	for relPath, file := range existing {
		if _, ok := seen[relPath]; ok {
			continue
		}
		if err := idx.storage.DeleteFile(ctx, file.ID); err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}

// updateProjectStats updates the project's file and block counts
func (idx *Indexer) updateProjectStats(ctx context.Context, project *storage.Project) error {
	status, err := idx.storage.GetStatus(ctx, project.ID)
	if err != nil {
		return err
	}

	project.TotalFiles = status.FilesCount
	project.TotalBlocks = status.BlocksCount
	project.LastIndexedAt = time.Now()

	return idx.storage.UpdateProject(ctx, project)
}

// readModulePath extracts the module path from a go.mod file
func readModulePath(goModPath string) (string, error) {
	content, err := os.ReadFile(goModPath) //nolint:gosec // fixed name under the project root
	if err != nil {
		return "", err
	}
	module := modfile.ModulePath(content)
	if module == "" {
		return "", fmt.Errorf("no module directive in %s", goModPath)
	}
	return module, nil
}
