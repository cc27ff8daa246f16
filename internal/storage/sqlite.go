package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/gocpd/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrNestedTx is returned when BeginTx is called on a transaction
	ErrNestedTx = errors.New("nested transactions not supported")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer; this also keeps :memory: databases
	// on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Project operations

const projectColumns = `
	id, root_path, module_name, block_size, total_files, total_blocks,
	index_version, last_indexed_at, created_at, updated_at`

func scanProject(row interface{ Scan(...interface{}) error }) (*Project, error) {
	var project Project
	var moduleName sql.NullString
	var lastIndexedAt sql.NullTime
	err := row.Scan(
		&project.ID, &project.RootPath, &moduleName, &project.BlockSize,
		&project.TotalFiles, &project.TotalBlocks, &project.IndexVersion,
		&lastIndexedAt, &project.CreatedAt, &project.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	project.ModuleName = moduleName.String
	if lastIndexedAt.Valid {
		project.LastIndexedAt = lastIndexedAt.Time
	}
	return &project, nil
}

func (s *SQLiteStorage) createProjectWithQuerier(ctx context.Context, q querier, project *Project) error {
	query := `
		INSERT INTO projects (root_path, module_name, block_size, index_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		project.RootPath, project.ModuleName, project.BlockSize,
		project.IndexVersion, now, now)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	project.ID = id
	project.CreatedAt = now
	project.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) CreateProject(ctx context.Context, project *Project) error {
	return s.createProjectWithQuerier(ctx, s.querier(), project)
}

func (s *SQLiteStorage) getProjectWithQuerier(ctx context.Context, q querier, rootPath string) (*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE root_path = ?`
	return scanProject(q.QueryRowContext(ctx, query, rootPath))
}

func (s *SQLiteStorage) GetProject(ctx context.Context, rootPath string) (*Project, error) {
	return s.getProjectWithQuerier(ctx, s.querier(), rootPath)
}

func (s *SQLiteStorage) getProjectByIDWithQuerier(ctx context.Context, q querier, projectID int64) (*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`
	return scanProject(q.QueryRowContext(ctx, query, projectID))
}

func (s *SQLiteStorage) GetProjectByID(ctx context.Context, projectID int64) (*Project, error) {
	return s.getProjectByIDWithQuerier(ctx, s.querier(), projectID)
}

func (s *SQLiteStorage) updateProjectWithQuerier(ctx context.Context, q querier, project *Project) error {
	query := `
		UPDATE projects
		SET module_name = ?, block_size = ?, total_files = ?, total_blocks = ?,
		    index_version = ?, last_indexed_at = ?, updated_at = ?
		WHERE id = ?
	`
	now := time.Now()
	_, err := q.ExecContext(ctx, query,
		project.ModuleName, project.BlockSize, project.TotalFiles, project.TotalBlocks,
		project.IndexVersion, project.LastIndexedAt, now, project.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	project.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpdateProject(ctx context.Context, project *Project) error {
	return s.updateProjectWithQuerier(ctx, s.querier(), project)
}

// File operations

const fileColumns = `
	id, project_id, file_path, content_hash, mod_time, size_bytes,
	statement_count, parse_error, last_indexed_at, created_at, updated_at`

func scanFile(row interface{ Scan(...interface{}) error }) (*File, error) {
	var file File
	var hash []byte
	var parseError sql.NullString
	err := row.Scan(
		&file.ID, &file.ProjectID, &file.FilePath, &hash, &file.ModTime,
		&file.SizeBytes, &file.StatementCount, &parseError,
		&file.LastIndexedAt, &file.CreatedAt, &file.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	copy(file.ContentHash[:], hash)
	if parseError.Valid {
		file.ParseError = &parseError.String
	}
	return &file, nil
}

func (s *SQLiteStorage) upsertFileWithQuerier(ctx context.Context, q querier, file *File) error {
	query := `
		INSERT INTO files (project_id, file_path, content_hash, mod_time, size_bytes, statement_count,
		                   parse_error, last_indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, file_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			mod_time = excluded.mod_time,
			size_bytes = excluded.size_bytes,
			statement_count = excluded.statement_count,
			parse_error = excluded.parse_error,
			last_indexed_at = excluded.last_indexed_at,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		file.ProjectID, file.FilePath, file.ContentHash[:], file.ModTime, file.SizeBytes,
		file.StatementCount, file.ParseError, now, now, now).Scan(&file.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}

	file.LastIndexedAt = now
	file.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertFile(ctx context.Context, file *File) error {
	return s.upsertFileWithQuerier(ctx, s.querier(), file)
}

func (s *SQLiteStorage) getFileWithQuerier(ctx context.Context, q querier, projectID int64, filePath string) (*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE project_id = ? AND file_path = ?`
	return scanFile(q.QueryRowContext(ctx, query, projectID, filePath))
}

func (s *SQLiteStorage) GetFile(ctx context.Context, projectID int64, filePath string) (*File, error) {
	return s.getFileWithQuerier(ctx, s.querier(), projectID, filePath)
}

func (s *SQLiteStorage) deleteFileWithQuerier(ctx context.Context, q querier, fileID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, fileID)
	return err
}

func (s *SQLiteStorage) DeleteFile(ctx context.Context, fileID int64) error {
	return s.deleteFileWithQuerier(ctx, s.querier(), fileID)
}

func (s *SQLiteStorage) listFilesWithQuerier(ctx context.Context, q querier, projectID int64) ([]*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE project_id = ? ORDER BY file_path`
	rows, err := q.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	files := make([]*File, 0)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func (s *SQLiteStorage) ListFiles(ctx context.Context, projectID int64) ([]*File, error) {
	return s.listFilesWithQuerier(ctx, s.querier(), projectID)
}

// Block operations

func (s *SQLiteStorage) insertBlocksWithQuerier(ctx context.Context, q querier, fileID int64, blocks []types.Block) error {
	if len(blocks) == 0 {
		return nil
	}

	stmt, err := q.PrepareContext(ctx, `
		INSERT INTO blocks (file_id, hash, index_in_file, start_line, end_line)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare block insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range blocks {
		b := &blocks[i]
		if _, err := stmt.ExecContext(ctx, fileID, b.Hash[:], b.IndexInFile, b.StartLine, b.EndLine); err != nil {
			return fmt.Errorf("failed to insert block %d: %w", b.IndexInFile, err)
		}
	}
	return nil
}

func (s *SQLiteStorage) InsertBlocks(ctx context.Context, fileID int64, blocks []types.Block) error {
	return s.insertBlocksWithQuerier(ctx, s.querier(), fileID, blocks)
}

func scanBlocks(rows *sql.Rows) ([]*Block, error) {
	defer func() { _ = rows.Close() }()

	blocks := make([]*Block, 0)
	for rows.Next() {
		var b Block
		var hash []byte
		if err := rows.Scan(&b.ID, &b.FileID, &b.FilePath, &hash, &b.IndexInFile, &b.StartLine, &b.EndLine); err != nil {
			return nil, err
		}
		b.Hash = types.HashFromBytes(hash)
		blocks = append(blocks, &b)
	}
	return blocks, rows.Err()
}

func (s *SQLiteStorage) listBlocksByFileWithQuerier(ctx context.Context, q querier, fileID int64) ([]*Block, error) {
	query := `
		SELECT b.id, b.file_id, f.file_path, b.hash, b.index_in_file, b.start_line, b.end_line
		FROM blocks b
		JOIN files f ON b.file_id = f.id
		WHERE b.file_id = ?
		ORDER BY b.index_in_file
	`
	rows, err := q.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, err
	}
	return scanBlocks(rows)
}

func (s *SQLiteStorage) ListBlocksByFile(ctx context.Context, fileID int64) ([]*Block, error) {
	return s.listBlocksByFileWithQuerier(ctx, s.querier(), fileID)
}

func (s *SQLiteStorage) deleteBlocksByFileWithQuerier(ctx context.Context, q querier, fileID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM blocks WHERE file_id = ?`, fileID)
	return err
}

func (s *SQLiteStorage) DeleteBlocksByFile(ctx context.Context, fileID int64) error {
	return s.deleteBlocksByFileWithQuerier(ctx, s.querier(), fileID)
}

func (s *SQLiteStorage) listBlocksByHashWithQuerier(ctx context.Context, q querier, projectID int64, hash types.Hash) ([]*Block, error) {
	query := `
		SELECT b.id, b.file_id, f.file_path, b.hash, b.index_in_file, b.start_line, b.end_line
		FROM blocks b
		JOIN files f ON b.file_id = f.id
		WHERE f.project_id = ? AND b.hash = ?
		ORDER BY f.file_path, b.index_in_file
	`
	rows, err := q.QueryContext(ctx, query, projectID, hash[:])
	if err != nil {
		return nil, err
	}
	return scanBlocks(rows)
}

func (s *SQLiteStorage) ListBlocksByHash(ctx context.Context, projectID int64, hash types.Hash) ([]*Block, error) {
	return s.listBlocksByHashWithQuerier(ctx, s.querier(), projectID, hash)
}

func (s *SQLiteStorage) listDuplicateBlocksWithQuerier(ctx context.Context, q querier, projectID int64) ([]*Block, error) {
	query := `
		SELECT b.id, b.file_id, f.file_path, b.hash, b.index_in_file, b.start_line, b.end_line
		FROM blocks b
		JOIN files f ON b.file_id = f.id
		WHERE f.project_id = ? AND b.hash IN (
			SELECT b2.hash
			FROM blocks b2
			JOIN files f2 ON b2.file_id = f2.id
			WHERE f2.project_id = ?
			GROUP BY b2.hash
			HAVING COUNT(*) > 1
		)
		ORDER BY f.file_path, b.index_in_file
	`
	rows, err := q.QueryContext(ctx, query, projectID, projectID)
	if err != nil {
		return nil, err
	}
	return scanBlocks(rows)
}

func (s *SQLiteStorage) ListDuplicateBlocks(ctx context.Context, projectID int64) ([]*Block, error) {
	return s.listDuplicateBlocksWithQuerier(ctx, s.querier(), projectID)
}

// Index run operations

func (s *SQLiteStorage) recordIndexRunWithQuerier(ctx context.Context, q querier, run *IndexRun) error {
	query := `
		INSERT INTO index_runs (run_id, project_id, files_indexed, files_skipped, files_failed,
		                        blocks_created, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	_, err := q.ExecContext(ctx, query,
		run.RunID, run.ProjectID, run.FilesIndexed, run.FilesSkipped, run.FilesFailed,
		run.BlocksCreated, run.Duration.Milliseconds(), run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record index run: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) RecordIndexRun(ctx context.Context, run *IndexRun) error {
	return s.recordIndexRunWithQuerier(ctx, s.querier(), run)
}

func (s *SQLiteStorage) listIndexRunsWithQuerier(ctx context.Context, q querier, projectID int64, limit int) ([]*IndexRun, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT run_id, project_id, files_indexed, files_skipped, files_failed,
		       blocks_created, duration_ms, created_at
		FROM index_runs
		WHERE project_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, query, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	runs := make([]*IndexRun, 0)
	for rows.Next() {
		var run IndexRun
		var durationMs int64
		if err := rows.Scan(&run.RunID, &run.ProjectID, &run.FilesIndexed, &run.FilesSkipped,
			&run.FilesFailed, &run.BlocksCreated, &durationMs, &run.CreatedAt); err != nil {
			return nil, err
		}
		run.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStorage) ListIndexRuns(ctx context.Context, projectID int64, limit int) ([]*IndexRun, error) {
	return s.listIndexRunsWithQuerier(ctx, s.querier(), projectID, limit)
}

// Status operations

func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier, projectID int64) (*ProjectStatus, error) {
	project, err := s.getProjectByIDWithQuerier(ctx, q, projectID)
	if err != nil {
		return nil, err
	}

	status := &ProjectStatus{
		Project:       project,
		LastIndexedAt: project.LastIndexedAt,
	}

	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN parse_error IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM files WHERE project_id = ?
	`, projectID).Scan(&status.FilesCount, &status.FailedFiles)
	if err != nil {
		return nil, err
	}

	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM blocks b
		JOIN files f ON b.file_id = f.id
		WHERE f.project_id = ?
	`, projectID).Scan(&status.BlocksCount)
	if err != nil {
		return nil, err
	}

	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT b.hash FROM blocks b
			JOIN files f ON b.file_id = f.id
			WHERE f.project_id = ?
			GROUP BY b.hash
			HAVING COUNT(*) > 1
		)
	`, projectID).Scan(&status.DuplicateHashes)
	if err != nil {
		return nil, err
	}

	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	status.Health = HealthStatus{DatabaseAccessible: true}
	if version, err := currentSchemaVersion(ctx, q); err == nil {
		status.Health.SchemaVersion = version.String()
	}

	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error) {
	return s.getStatusWithQuerier(ctx, s.querier(), projectID)
}
