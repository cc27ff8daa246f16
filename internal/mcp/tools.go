package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/gocpd/internal/chunker"
	"github.com/dshills/gocpd/internal/config"
	"github.com/dshills/gocpd/internal/detector"
	"github.com/dshills/gocpd/internal/indexer"
	"github.com/dshills/gocpd/internal/statement"
	"github.com/dshills/gocpd/internal/storage"
	"github.com/dshills/gocpd/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeProjectNotFound    = -32001 // Specified path contains no indexable files
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // Project not indexed
)

const (
	defaultDuplicatesLimit = 50
	maxDuplicatesLimit     = 500
	maxReportedErrors      = 5
)

// handleIndexCodebase handles the index_codebase tool invocation
func (s *Server) handleIndexCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := requirePath(request)
	if err != nil {
		return nil, err
	}
	if err := validatePath(path); err != nil {
		return nil, invalidPath(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid project configuration", map[string]interface{}{
			"file":   config.FileName,
			"reason": err.Error(),
		})
	}

	blockSize := request.GetInt("block_size", cfg.GetBlockSize())
	if blockSize < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "block_size must be at least 1", map[string]interface{}{
			"param": "block_size",
			"value": blockSize,
		})
	}

	idxConfig := &indexer.Config{
		BlockSize:     blockSize,
		Workers:       cfg.GetWorkers(),
		BatchSize:     cfg.GetBatchSize(),
		IncludeTests:  request.GetBool("include_tests", cfg.GetIncludeTests()),
		IncludeVendor: request.GetBool("include_vendor", cfg.IncludeVendor),
		ForceReindex:  request.GetBool("force_reindex", false),
		Extensions:    cfg.GetExtensions(),
	}

	if !indexer.HasSourceFiles(path, idxConfig) {
		return nil, newMCPError(ErrorCodeProjectNotFound, ErrNoSourceFiles.Error(), map[string]interface{}{
			"path":           path,
			"extensions":     idxConfig.Extensions,
			"include_tests":  idxConfig.IncludeTests,
			"include_vendor": idxConfig.IncludeVendor,
		})
	}

	if !s.indexLocks.TryAcquire(path) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", map[string]interface{}{
			"path": path,
		})
	}
	defer s.indexLocks.Release(path)

	stats, err := s.indexer.IndexProject(ctx, path, idxConfig)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":        true,
		"run_id":         stats.RunID,
		"block_size":     blockSize,
		"files_indexed":  stats.FilesIndexed,
		"files_skipped":  stats.FilesSkipped,
		"files_failed":   stats.FilesFailed,
		"files_pruned":   stats.FilesPruned,
		"blocks_created": stats.BlocksCreated,
		"duration_ms":    stats.Duration.Milliseconds(),
	}

	if errorCount := len(stats.ErrorMessages); errorCount > 0 {
		if errorCount > maxReportedErrors {
			response["errors"] = stats.ErrorMessages[:maxReportedErrors]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleFindDuplicates handles the find_duplicates tool invocation
func (s *Server) handleFindDuplicates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := requirePath(request)
	if err != nil {
		return nil, err
	}
	if err := validatePath(path); err != nil {
		return nil, invalidPath(err)
	}

	limit := request.GetInt("limit", defaultDuplicatesLimit)
	if limit < 1 || limit > maxDuplicatesLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", maxDuplicatesLimit), map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	minLines := 0
	if cfg, err := loadConfig(path); err == nil {
		minLines = cfg.MinLines
	}
	minLines = request.GetInt("min_lines", minLines)
	if minLines < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "min_lines must not be negative", map[string]interface{}{
			"param": "min_lines",
			"value": minLines,
		})
	}

	project, err := s.lookupProject(ctx, path)
	if err != nil {
		return nil, err
	}

	report, err := s.detector.FindClones(ctx, project.ID, detector.Options{MinLines: minLines, Limit: limit})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to find duplicates", map[string]interface{}{
			"error": err.Error(),
		})
	}

	groups := make([]map[string]interface{}, 0, len(report.Groups))
	for _, g := range report.Groups {
		parts := make([]map[string]interface{}, 0, len(g.Parts))
		for _, p := range g.Parts {
			parts = append(parts, map[string]interface{}{
				"file":       p.ResourceID,
				"start_line": p.StartLine,
				"end_line":   p.EndLine,
			})
		}
		groups = append(groups, map[string]interface{}{
			"hash":        g.Hash.String(),
			"lines":       g.Lines(),
			"blocks":      g.Blocks,
			"occurrences": parts,
		})
	}

	response := map[string]interface{}{
		"path":             project.RootPath,
		"block_size":       project.BlockSize,
		"total_groups":     report.TotalGroups,
		"returned":         len(groups),
		"duplicated_lines": report.DuplicatedLines,
		"cache_hit":        report.CacheHit,
		"duration_ms":      report.Duration.Milliseconds(),
		"groups":           groups,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := requirePath(request)
	if err != nil {
		return nil, err
	}
	if err := validatePath(path); err != nil {
		return nil, invalidPath(err)
	}

	project, err := s.storage.GetProject(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		response := map[string]interface{}{
			"indexed": false,
			"path":    path,
			"message": "Project not indexed. Use index_codebase tool to index this project.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get project status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	status, err := s.storage.GetStatus(ctx, project.ID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	runs, err := s.storage.ListIndexRuns(ctx, project.ID, 5)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list index runs", map[string]interface{}{
			"error": err.Error(),
		})
	}
	recentRuns := make([]map[string]interface{}, 0, len(runs))
	for _, r := range runs {
		recentRuns = append(recentRuns, map[string]interface{}{
			"run_id":         r.RunID,
			"files_indexed":  r.FilesIndexed,
			"files_skipped":  r.FilesSkipped,
			"files_failed":   r.FilesFailed,
			"blocks_created": r.BlocksCreated,
			"duration_ms":    r.Duration.Milliseconds(),
			"created_at":     r.CreatedAt.Format(time.RFC3339),
		})
	}

	response := map[string]interface{}{
		"indexed":  true,
		"indexing": s.indexLocks.Held(path),
		"project": map[string]interface{}{
			"path":            project.RootPath,
			"module_name":     project.ModuleName,
			"block_size":      project.BlockSize,
			"last_indexed_at": project.LastIndexedAt.Format(time.RFC3339),
		},
		"statistics": map[string]interface{}{
			"files_count":      status.FilesCount,
			"failed_files":     status.FailedFiles,
			"blocks_count":     status.BlocksCount,
			"duplicate_hashes": status.DuplicateHashes,
			"index_size_mb":    fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible": status.Health.DatabaseAccessible,
			"schema_version":      status.Health.SchemaVersion,
		},
		"recent_runs": recentRuns,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleFingerprintFile handles the fingerprint_file tool invocation
func (s *Server) handleFingerprintFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := requirePath(request)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(path) {
		return nil, invalidPath(ErrPathNotAbsolute)
	}

	blockSize := request.GetInt("block_size", chunker.DefaultBlockSize)
	blockChunker, err := chunker.New(blockSize)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "block_size must be at least 1", map[string]interface{}{
			"param": "block_size",
			"value": blockSize,
		})
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, invalidPath(ErrPathNotFound)
	case err != nil:
		return nil, invalidPath(ErrPathNotReadable)
	case info.IsDir():
		return nil, invalidPath(ErrIsDirectory)
	}

	content, err := os.ReadFile(path) //nolint:gosec // caller-supplied absolute path
	if err != nil {
		return nil, invalidPath(ErrPathNotReadable)
	}

	statements, parseErr := statement.ForPath(path).Statements(path, content)
	if statements == nil {
		statements = []types.Statement{}
	}
	blocks, err := blockChunker.Chunk(path, statements)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "fingerprinting failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	out := make([]map[string]interface{}, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, map[string]interface{}{
			"index":      b.IndexInFile,
			"hash":       b.Hash.String(),
			"start_line": b.StartLine,
			"end_line":   b.EndLine,
		})
	}

	response := map[string]interface{}{
		"path":       path,
		"block_size": blockSize,
		"statements": len(statements),
		"blocks":     out,
	}
	if parseErr != nil {
		response["parse_error"] = parseErr.Error()
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// lookupProject returns the indexed project rooted at path
func (s *Server) lookupProject(ctx context.Context, path string) (*storage.Project, error) {
	project, err := s.storage.GetProject(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeNotIndexed, "project not indexed", map[string]interface{}{
			"path": path,
			"hint": "run index_codebase first",
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load project", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return project, nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func invalidPath(err error) error {
	return newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
		"param":  "path",
		"reason": err.Error(),
	})
}

// requirePath extracts the path argument, cleaned
func requirePath(request mcp.CallToolRequest) (string, error) {
	path := request.GetString("path", "")
	if path == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	return filepath.Clean(path), nil
}

// validatePath checks if a path is an accessible absolute directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path) //nolint:gosec // validated absolute directory
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// loadConfig reads and validates the project's .gocpd.yaml
func loadConfig(root string) (*config.Config, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
	ErrIsDirectory     = errors.New("path is a directory")
	ErrNoSourceFiles   = errors.New("directory does not contain source files")
)
