package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gocpd/internal/storage"
)

const sumFunc = `package calc

func Sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}
`

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return New(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func decodeResult(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	var text string
	switch c := result.Content[0].(type) {
	case mcp.TextContent:
		text = c.Text
	case *mcp.TextContent:
		text = c.Text
	default:
		t.Fatalf("expected text content, got %T", c)
	}

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	return out
}

func requireMCPError(t *testing.T, err error, code int) *MCPError {
	t.Helper()
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code)
	return mcpErr
}

func TestNewServer(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "gocpd.db")

	server, err := NewServer(dbPath, nil)
	require.NoError(t, err)
	defer server.Close()

	assert.NotNil(t, server.mcp, "MCP server should be initialized")
	assert.NotNil(t, server.indexer, "Indexer should be initialized")
	assert.NotNil(t, server.detector, "Detector should be initialized")
	assert.FileExists(t, dbPath)
}

func TestIndexAndFindDuplicates(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, root, "a.go", sumFunc)
	writeFile(t, root, "b/b.go", sumFunc)
	writeFile(t, root, ".gocpd.yaml", "block_size: 3\n")

	result, err := s.handleIndexCodebase(ctx, callRequest("index_codebase", map[string]interface{}{
		"path": root,
	}))
	require.NoError(t, err)
	out := decodeResult(t, result)
	assert.Equal(t, true, out["indexed"])
	assert.EqualValues(t, 3, out["block_size"])
	assert.EqualValues(t, 2, out["files_indexed"])
	assert.EqualValues(t, 10, out["blocks_created"])
	assert.NotEmpty(t, out["run_id"])

	result, err = s.handleFindDuplicates(ctx, callRequest("find_duplicates", map[string]interface{}{
		"path": root,
	}))
	require.NoError(t, err)
	out = decodeResult(t, result)
	assert.EqualValues(t, 1, out["total_groups"])

	groups := out["groups"].([]interface{})
	require.Len(t, groups, 1)
	group := groups[0].(map[string]interface{})
	assert.EqualValues(t, 5, group["blocks"])
	assert.EqualValues(t, 7, group["lines"])

	occurrences := group["occurrences"].([]interface{})
	require.Len(t, occurrences, 2)
	first := occurrences[0].(map[string]interface{})
	assert.Equal(t, "a.go", first["file"])
	assert.EqualValues(t, 3, first["start_line"])
	assert.EqualValues(t, 9, first["end_line"])

	// Groups below min_lines are dropped
	result, err = s.handleFindDuplicates(ctx, callRequest("find_duplicates", map[string]interface{}{
		"path":      root,
		"min_lines": 8,
	}))
	require.NoError(t, err)
	out = decodeResult(t, result)
	assert.EqualValues(t, 0, out["total_groups"])
}

func TestIndexCodebase_Errors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleIndexCodebase(ctx, callRequest("index_codebase", map[string]interface{}{}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	_, err = s.handleIndexCodebase(ctx, callRequest("index_codebase", map[string]interface{}{
		"path": "relative/path",
	}))
	mcpErr := requireMCPError(t, err, ErrorCodeInvalidParams)
	assert.Equal(t, ErrPathNotAbsolute.Error(), mcpErr.Data.(map[string]interface{})["reason"])

	empty := t.TempDir()
	_, err = s.handleIndexCodebase(ctx, callRequest("index_codebase", map[string]interface{}{
		"path": empty,
	}))
	requireMCPError(t, err, ErrorCodeProjectNotFound)

	root := t.TempDir()
	writeFile(t, root, "a.go", sumFunc)
	_, err = s.handleIndexCodebase(ctx, callRequest("index_codebase", map[string]interface{}{
		"path":       root,
		"block_size": 0,
	}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	writeFile(t, root, ".gocpd.yaml", "block_size: -4\n")
	_, err = s.handleIndexCodebase(ctx, callRequest("index_codebase", map[string]interface{}{
		"path": root,
	}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestIndexCodebase_InProgress(t *testing.T) {
	s := newTestServer(t)
	root := t.TempDir()
	writeFile(t, root, "a.go", sumFunc)

	require.True(t, s.indexLocks.TryAcquire(root))
	defer s.indexLocks.Release(root)

	_, err := s.handleIndexCodebase(context.Background(), callRequest("index_codebase", map[string]interface{}{
		"path": root,
	}))
	requireMCPError(t, err, ErrorCodeIndexingInProgress)

	// A run on one project does not block another
	other := t.TempDir()
	writeFile(t, other, "a.go", sumFunc)
	_, err = s.handleIndexCodebase(context.Background(), callRequest("index_codebase", map[string]interface{}{
		"path": other,
	}))
	require.NoError(t, err)
}

func TestFindDuplicates_NotIndexed(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleFindDuplicates(context.Background(), callRequest("find_duplicates", map[string]interface{}{
		"path": t.TempDir(),
	}))
	requireMCPError(t, err, ErrorCodeNotIndexed)
}

func TestFindDuplicates_InvalidLimit(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleFindDuplicates(context.Background(), callRequest("find_duplicates", map[string]interface{}{
		"path":  t.TempDir(),
		"limit": 0,
	}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestGetStatus(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, root, "a.go", sumFunc)

	result, err := s.handleGetStatus(ctx, callRequest("get_status", map[string]interface{}{"path": root}))
	require.NoError(t, err)
	out := decodeResult(t, result)
	assert.Equal(t, false, out["indexed"])

	_, err = s.handleIndexCodebase(ctx, callRequest("index_codebase", map[string]interface{}{
		"path":       root,
		"block_size": 3,
	}))
	require.NoError(t, err)

	result, err = s.handleGetStatus(ctx, callRequest("get_status", map[string]interface{}{"path": root}))
	require.NoError(t, err)
	out = decodeResult(t, result)
	assert.Equal(t, true, out["indexed"])
	assert.Equal(t, false, out["indexing"])

	require.True(t, s.indexLocks.TryAcquire(root))
	result, err = s.handleGetStatus(ctx, callRequest("get_status", map[string]interface{}{"path": root}))
	s.indexLocks.Release(root)
	require.NoError(t, err)
	assert.Equal(t, true, decodeResult(t, result)["indexing"])

	project := out["project"].(map[string]interface{})
	assert.EqualValues(t, 3, project["block_size"])

	stats := out["statistics"].(map[string]interface{})
	assert.EqualValues(t, 1, stats["files_count"])
	assert.EqualValues(t, 5, stats["blocks_count"])

	health := out["health"].(map[string]interface{})
	assert.Equal(t, true, health["database_accessible"])
	assert.Equal(t, storage.CurrentSchemaVersion, health["schema_version"])

	assert.Len(t, out["recent_runs"], 1)
}

func TestFingerprintFile(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "a.go", sumFunc)

	result, err := s.handleFingerprintFile(ctx, callRequest("fingerprint_file", map[string]interface{}{
		"path":       path,
		"block_size": 3,
	}))
	require.NoError(t, err)
	out := decodeResult(t, result)
	assert.EqualValues(t, 7, out["statements"])

	blocks := out["blocks"].([]interface{})
	require.Len(t, blocks, 5)
	first := blocks[0].(map[string]interface{})
	assert.EqualValues(t, 0, first["index"])
	assert.Len(t, first["hash"], 16)
	assert.NotContains(t, out, "parse_error")

	// Default block size leaves this small file without blocks
	result, err = s.handleFingerprintFile(ctx, callRequest("fingerprint_file", map[string]interface{}{
		"path": path,
	}))
	require.NoError(t, err)
	out = decodeResult(t, result)
	assert.Empty(t, out["blocks"])
}

func TestFingerprintFile_Errors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	dir := t.TempDir()

	_, err := s.handleFingerprintFile(ctx, callRequest("fingerprint_file", map[string]interface{}{"path": dir}))
	mcpErr := requireMCPError(t, err, ErrorCodeInvalidParams)
	assert.Equal(t, ErrIsDirectory.Error(), mcpErr.Data.(map[string]interface{})["reason"])

	_, err = s.handleFingerprintFile(ctx, callRequest("fingerprint_file", map[string]interface{}{
		"path": filepath.Join(dir, "missing.go"),
	}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	path := writeFile(t, dir, "a.go", sumFunc)
	_, err = s.handleFingerprintFile(ctx, callRequest("fingerprint_file", map[string]interface{}{
		"path":       path,
		"block_size": -1,
	}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestValidatePath(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "x.go", "package x\n")

	assert.NoError(t, validatePath(dir))
	assert.ErrorIs(t, validatePath(""), ErrPathRequired)
	assert.ErrorIs(t, validatePath("rel"), ErrPathNotAbsolute)
	assert.ErrorIs(t, validatePath(filepath.Join(dir, "nope")), ErrPathNotFound)
	assert.ErrorIs(t, validatePath(file), ErrNotDirectory)
}

func TestIndexCodebase_OnlyVendoredSources(t *testing.T) {
	s := newTestServer(t)
	root := t.TempDir()
	writeFile(t, root, "vendor/example.com/dep/dep.go", sumFunc)
	writeFile(t, root, ".cache/gen.go", sumFunc)

	_, err := s.handleIndexCodebase(context.Background(), callRequest("index_codebase", map[string]interface{}{
		"path": root,
	}))
	requireMCPError(t, err, ErrorCodeProjectNotFound)

	result, err := s.handleIndexCodebase(context.Background(), callRequest("index_codebase", map[string]interface{}{
		"path":           root,
		"include_vendor": true,
		"block_size":     3,
	}))
	require.NoError(t, err)
	out := decodeResult(t, result)
	assert.EqualValues(t, 1, out["files_indexed"])
}
