package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gocpd/internal/storage"
	"github.com/dshills/gocpd/pkg/types"
)

// sumFunc yields 7 statements, i.e. 5 blocks of size 3
const sumFunc = `package calc

import "fmt"

func Sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}
`

const otherFunc = `package calc

func Max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
`

func setupTestStorage(t testing.TB) storage.Storage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err, "Failed to create test storage")
	t.Cleanup(func() { _ = store.Close() })

	return store
}

// createTestFile writes a file below dir, creating parent directories
func createTestFile(t testing.TB, dir, name, content string) string {
	t.Helper()

	filePath := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0o644))

	return filePath
}

func testConfig() *Config {
	return &Config{BlockSize: 3, Workers: 2, BatchSize: 2, IncludeTests: true}
}

func TestNew(t *testing.T) {
	store := setupTestStorage(t)

	idx := New(store)
	assert.NotNil(t, idx.storage)
	assert.NotNil(t, idx.logger)

	assert.Same(t, idx, idx.WithLogger(nil), "nil logger keeps the default")
}

func TestDiscoverFiles(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFile(t, tmpDir, "main.go", "package main\n")
	createTestFile(t, tmpDir, "main_test.go", "package main\n")
	createTestFile(t, tmpDir, "pkg/util.go", "package pkg\n")
	createTestFile(t, tmpDir, "vendor/lib/lib.go", "package lib\n")
	createTestFile(t, tmpDir, ".git/hooks.go", "package hooks\n")
	createTestFile(t, tmpDir, "scripts/run.py", "print('hi')\n")
	createTestFile(t, tmpDir, "README.md", "# README\n")

	tests := []struct {
		name   string
		config *Config
		want   []string
	}{
		{
			name:   "defaults",
			config: &Config{IncludeTests: true, Extensions: []string{".go"}},
			want:   []string{"main.go", "main_test.go", "pkg/util.go"},
		},
		{
			name:   "skip tests",
			config: &Config{Extensions: []string{".go"}},
			want:   []string{"main.go", "pkg/util.go"},
		},
		{
			name:   "include vendor",
			config: &Config{IncludeVendor: true, Extensions: []string{".go"}},
			want:   []string{"main.go", "pkg/util.go", "vendor/lib/lib.go"},
		},
		{
			name:   "extra extension",
			config: &Config{Extensions: []string{".go", ".py"}},
			want:   []string{"main.go", "pkg/util.go", "scripts/run.py"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := discoverFiles(tmpDir, tt.config)
			require.NoError(t, err)

			var rel []string
			for _, f := range files {
				r, err := filepath.Rel(tmpDir, f)
				require.NoError(t, err)
				rel = append(rel, filepath.ToSlash(r))
			}
			assert.ElementsMatch(t, tt.want, rel)
		})
	}
}

func TestIndexProject_Success(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFile(t, tmpDir, "go.mod", "module example.com/calc\n\ngo 1.22\n")
	createTestFile(t, tmpDir, "a.go", sumFunc)
	createTestFile(t, tmpDir, "b/b.go", sumFunc)
	createTestFile(t, tmpDir, "max.go", otherFunc)

	store := setupTestStorage(t)
	ctx := context.Background()

	stats, err := New(store).IndexProject(ctx, tmpDir, testConfig())
	require.NoError(t, err)

	assert.NotEmpty(t, stats.RunID)
	assert.Equal(t, 3, stats.FilesIndexed)
	assert.Zero(t, stats.FilesSkipped)
	assert.Zero(t, stats.FilesFailed)
	assert.Empty(t, stats.ErrorMessages)

	project, err := store.GetProject(ctx, tmpDir)
	require.NoError(t, err)
	assert.Equal(t, stats.ProjectID, project.ID)
	assert.Equal(t, "example.com/calc", project.ModuleName)
	assert.Equal(t, 3, project.BlockSize)
	assert.Equal(t, 3, project.TotalFiles)
	assert.Equal(t, stats.BlocksCreated, project.TotalBlocks)
	assert.False(t, project.LastIndexedAt.IsZero())

	// Both copies of Sum produce the same five hashes
	dups, err := store.ListDuplicateBlocks(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, dups, 10)
	assert.Equal(t, "a.go", dups[0].FilePath)
	assert.Equal(t, "b/b.go", dups[5].FilePath)
	for i := 0; i < 5; i++ {
		assert.Equal(t, dups[i].Hash, dups[i+5].Hash)
		assert.Equal(t, i, dups[i].IndexInFile)
	}

	file, err := store.GetFile(ctx, project.ID, "a.go")
	require.NoError(t, err)
	assert.Equal(t, 7, file.StatementCount)
	assert.Nil(t, file.ParseError)

	runs, err := store.ListIndexRuns(ctx, project.ID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, stats.RunID, runs[0].RunID)
	assert.Equal(t, 3, runs[0].FilesIndexed)
}

func TestIndexProject_EmptyProject(t *testing.T) {
	tmpDir := t.TempDir()
	store := setupTestStorage(t)

	stats, err := New(store).IndexProject(context.Background(), tmpDir, testConfig())
	require.NoError(t, err)
	assert.Zero(t, stats.FilesIndexed)
	assert.Zero(t, stats.BlocksCreated)
}

func TestIndexProject_ShortFileHasNoBlocks(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFile(t, tmpDir, "tiny.go", "package tiny\n\nvar X = 1\n")

	store := setupTestStorage(t)
	stats, err := New(store).IndexProject(context.Background(), tmpDir, testConfig())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Zero(t, stats.BlocksCreated)
}

func TestIndexProject_IncrementalUpdate(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFile(t, tmpDir, "a.go", sumFunc)
	bPath := createTestFile(t, tmpDir, "b.go", sumFunc)

	store := setupTestStorage(t)
	ctx := context.Background()
	idx := New(store)

	stats1, err := idx.IndexProject(ctx, tmpDir, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, stats1.FilesIndexed)

	stats2, err := idx.IndexProject(ctx, tmpDir, testConfig())
	require.NoError(t, err)
	assert.Zero(t, stats2.FilesIndexed)
	assert.Equal(t, 2, stats2.FilesSkipped)
	assert.NotEqual(t, stats1.RunID, stats2.RunID)

	require.NoError(t, os.WriteFile(bPath, []byte(otherFunc), 0o644))
	stats3, err := idx.IndexProject(ctx, tmpDir, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, stats3.FilesIndexed)
	assert.Equal(t, 1, stats3.FilesSkipped)

	// The old blocks of b.go are gone, so nothing is duplicated anymore
	dups, err := store.ListDuplicateBlocks(ctx, stats3.ProjectID)
	require.NoError(t, err)
	assert.Empty(t, dups)

	runs, err := store.ListIndexRuns(ctx, stats3.ProjectID, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestIndexProject_ForceReindex(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFile(t, tmpDir, "a.go", sumFunc)

	store := setupTestStorage(t)
	ctx := context.Background()
	idx := New(store)

	_, err := idx.IndexProject(ctx, tmpDir, testConfig())
	require.NoError(t, err)

	cfg := testConfig()
	cfg.ForceReindex = true
	stats, err := idx.IndexProject(ctx, tmpDir, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Zero(t, stats.FilesSkipped)
	assert.Equal(t, 5, stats.BlocksCreated)
}

func TestIndexProject_BlockSizeChangeForcesReindex(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFile(t, tmpDir, "a.go", sumFunc)

	store := setupTestStorage(t)
	ctx := context.Background()
	idx := New(store)

	_, err := idx.IndexProject(ctx, tmpDir, testConfig())
	require.NoError(t, err)

	cfg := testConfig()
	cfg.BlockSize = 5
	stats, err := idx.IndexProject(ctx, tmpDir, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 3, stats.BlocksCreated)

	project, err := store.GetProjectByID(ctx, stats.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, 5, project.BlockSize)
	assert.Equal(t, 3, project.TotalBlocks)
}

func TestIndexProject_PrunesRemovedFiles(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFile(t, tmpDir, "a.go", sumFunc)
	bPath := createTestFile(t, tmpDir, "b.go", sumFunc)

	store := setupTestStorage(t)
	ctx := context.Background()
	idx := New(store)

	_, err := idx.IndexProject(ctx, tmpDir, testConfig())
	require.NoError(t, err)

	require.NoError(t, os.Remove(bPath))
	stats, err := idx.IndexProject(ctx, tmpDir, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesPruned)

	files, err := store.ListFiles(ctx, stats.ProjectID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.go", files[0].FilePath)

	project, err := store.GetProjectByID(ctx, stats.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, 1, project.TotalFiles)
	assert.Equal(t, 5, project.TotalBlocks)
}

func TestIndexProject_WithParseErrors(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFile(t, tmpDir, "broken.go", "package broken\n\nfunc f() {\n\ts := \"unterminated\n}\n")

	store := setupTestStorage(t)
	ctx := context.Background()

	stats, err := New(store).IndexProject(ctx, tmpDir, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed, "tokenizer errors keep the recovered statements")

	file, err := store.GetFile(ctx, stats.ProjectID, "broken.go")
	require.NoError(t, err)
	require.NotNil(t, file.ParseError)
	assert.Contains(t, *file.ParseError, "not terminated")
}

func TestIndexProject_LineProducerForOtherExtensions(t *testing.T) {
	tmpDir := t.TempDir()
	script := "# helper\nx = 1\ny = 2\nprint(x + y)\n"
	createTestFile(t, tmpDir, "one.py", script)
	createTestFile(t, tmpDir, "two.py", script)

	store := setupTestStorage(t)
	cfg := testConfig()
	cfg.Extensions = []string{".py"}

	stats, err := New(store).IndexProject(context.Background(), tmpDir, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Equal(t, 2, stats.BlocksCreated)

	dups, err := store.ListDuplicateBlocks(context.Background(), stats.ProjectID)
	require.NoError(t, err)
	assert.Len(t, dups, 2)
}

func TestIndexProject_InvalidBlockSize(t *testing.T) {
	store := setupTestStorage(t)
	cfg := testConfig()
	cfg.BlockSize = -1

	_, err := New(store).IndexProject(context.Background(), t.TempDir(), cfg)
	assert.ErrorIs(t, err, types.ErrInvalidBlockSize)
}

func TestIndexProject_ContextCancellation(t *testing.T) {
	tmpDir := t.TempDir()
	for i := 0; i < 10; i++ {
		createTestFile(t, tmpDir, filepath.Join("pkg", strings.Repeat("f", i+1)+".go"), sumFunc)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(setupTestStorage(t)).IndexProject(ctx, tmpDir, testConfig())
	assert.Error(t, err)
}

func TestIndexProject_NilConfig(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFile(t, tmpDir, "a.go", sumFunc)

	stats, err := New(setupTestStorage(t)).IndexProject(context.Background(), tmpDir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Zero(t, stats.BlocksCreated, "seven statements are below the default block size")
}

func TestNormalizeConfig(t *testing.T) {
	cfg := normalizeConfig(&Config{BlockSize: 4})
	assert.Equal(t, 4, cfg.BlockSize)
	assert.Positive(t, cfg.Workers)
	assert.Equal(t, 20, cfg.BatchSize)
	assert.Equal(t, []string{".go"}, cfg.Extensions)

	assert.Equal(t, DefaultConfig(), normalizeConfig(nil))
}

func TestReadModulePath(t *testing.T) {
	tmpDir := t.TempDir()
	path := createTestFile(t, tmpDir, "go.mod", "module github.com/acme/widget\n\ngo 1.22\n")

	module, err := readModulePath(path)
	require.NoError(t, err)
	assert.Equal(t, "github.com/acme/widget", module)

	_, err = readModulePath(filepath.Join(tmpDir, "missing.mod"))
	assert.Error(t, err)
}

func TestIndexProject_Testdata(t *testing.T) {
	root, err := filepath.Abs(filepath.Join("testdata", "shop"))
	require.NoError(t, err)

	store := setupTestStorage(t)
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.BlockSize = 5
	stats, err := New(store).IndexProject(ctx, root, cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.FilesIndexed)
	assert.Zero(t, stats.FilesFailed)
	assert.Positive(t, stats.BlocksCreated)

	project, err := store.GetProject(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, "example.com/shop", project.ModuleName)

	// The copied validation body repeats across orders.go and invoices.go
	dups, err := store.ListDuplicateBlocks(ctx, project.ID)
	require.NoError(t, err)
	require.NotEmpty(t, dups)

	files := map[string]bool{}
	for _, b := range dups {
		files[b.FilePath] = true
	}
	assert.Equal(t, map[string]bool{"invoices.go": true, "orders.go": true}, files)
}

// flakyStorage fails the first n InsertBlocks calls made inside transactions
type flakyStorage struct {
	storage.Storage
	failures atomic.Int32
}

func (s *flakyStorage) BeginTx(ctx context.Context) (storage.Tx, error) {
	tx, err := s.Storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &flakyTx{Tx: tx, store: s}, nil
}

type flakyTx struct {
	storage.Tx
	store *flakyStorage
}

func (t *flakyTx) InsertBlocks(ctx context.Context, fileID int64, blocks []types.Block) error {
	if t.store.failures.Add(-1) >= 0 {
		return errors.New("disk I/O error")
	}
	return t.Tx.InsertBlocks(ctx, fileID, blocks)
}

func TestIndexProject_FailedStoreIsRetriedNextRun(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFile(t, tmpDir, "a.go", sumFunc)
	createTestFile(t, tmpDir, "b.go", otherFunc)

	store := setupTestStorage(t)
	flaky := &flakyStorage{Storage: store}
	// One failure for the batch transaction, one for a.go on its own
	flaky.failures.Store(2)
	ctx := context.Background()

	stats, err := New(flaky).IndexProject(ctx, tmpDir, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesFailed)
	assert.Equal(t, 1, stats.FilesIndexed)
	require.Len(t, stats.ErrorMessages, 1)
	assert.Contains(t, stats.ErrorMessages[0], "a.go")

	project, err := store.GetProject(ctx, tmpDir)
	require.NoError(t, err)

	// Nothing of a.go may be committed, otherwise its hash would mark it unchanged
	_, err = store.GetFile(ctx, project.ID, "a.go")
	require.ErrorIs(t, err, storage.ErrNotFound)

	stats, err = New(flaky).IndexProject(ctx, tmpDir, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesSkipped)
	assert.Zero(t, stats.FilesFailed)

	file, err := store.GetFile(ctx, project.ID, "a.go")
	require.NoError(t, err)
	blocks, err := store.ListBlocksByFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Len(t, blocks, 5)
}

func TestHasSourceFiles(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFile(t, tmpDir, "vendor/dep/dep.go", "package dep\n")
	createTestFile(t, tmpDir, ".git/hooks/hook.go", "package hooks\n")
	createTestFile(t, tmpDir, "x_test.go", "package x\n")

	assert.False(t, HasSourceFiles(tmpDir, &Config{}), "vendor, hidden and test files only")
	assert.True(t, HasSourceFiles(tmpDir, &Config{IncludeVendor: true}))
	assert.True(t, HasSourceFiles(tmpDir, &Config{IncludeTests: true}))
	assert.False(t, HasSourceFiles(tmpDir, &Config{IncludeTests: true, Extensions: []string{".py"}}))

	createTestFile(t, tmpDir, "main.go", "package main\n")
	assert.True(t, HasSourceFiles(tmpDir, nil))
}
