package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/gocpd/internal/detector"
	"github.com/dshills/gocpd/internal/indexer"
	"github.com/dshills/gocpd/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "gocpd"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp        *server.MCPServer
	storage    storage.Storage
	indexer    *indexer.Indexer
	detector   *detector.Detector
	logger     *slog.Logger
	indexLocks indexer.ProjectLocks
}

// NewServer opens the database at dbPath, creating its directory if needed.
// Close releases it.
func NewServer(dbPath string, logger *slog.Logger) (*Server, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return New(store, logger), nil
}

// New creates a server on top of an open storage
func New(store storage.Storage, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		storage:  store,
		indexer:  indexer.New(store).WithLogger(logger),
		detector: detector.New(store),
		logger:   logger,
	}
	s.registerTools()

	return s
}

// Serve runs the MCP protocol on stdio until ctx is done or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	s.logger.Info("serving MCP on stdio", "name", ServerName, "version", ServerVersion)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// Close closes the underlying storage
func (s *Server) Close() error {
	return s.storage.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexCodebaseTool(), s.handleIndexCodebase)
	s.mcp.AddTool(findDuplicatesTool(), s.handleFindDuplicates)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(fingerprintFileTool(), s.handleFingerprintFile)
}
