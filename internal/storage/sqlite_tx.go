package storage

import (
	"context"
	"database/sql"

	"github.com/dshills/gocpd/pkg/types"
)

// sqliteTx wraps a SQL transaction. Every operation runs on the transaction
// so that callers never wait on the single pooled connection the
// transaction already holds.
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

func (t *sqliteTx) CreateProject(ctx context.Context, project *Project) error {
	return t.storage.createProjectWithQuerier(ctx, t.querier(), project)
}

func (t *sqliteTx) GetProject(ctx context.Context, rootPath string) (*Project, error) {
	return t.storage.getProjectWithQuerier(ctx, t.querier(), rootPath)
}

func (t *sqliteTx) GetProjectByID(ctx context.Context, projectID int64) (*Project, error) {
	return t.storage.getProjectByIDWithQuerier(ctx, t.querier(), projectID)
}

func (t *sqliteTx) UpdateProject(ctx context.Context, project *Project) error {
	return t.storage.updateProjectWithQuerier(ctx, t.querier(), project)
}

func (t *sqliteTx) UpsertFile(ctx context.Context, file *File) error {
	return t.storage.upsertFileWithQuerier(ctx, t.querier(), file)
}

func (t *sqliteTx) GetFile(ctx context.Context, projectID int64, filePath string) (*File, error) {
	return t.storage.getFileWithQuerier(ctx, t.querier(), projectID, filePath)
}

func (t *sqliteTx) DeleteFile(ctx context.Context, fileID int64) error {
	return t.storage.deleteFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) ListFiles(ctx context.Context, projectID int64) ([]*File, error) {
	return t.storage.listFilesWithQuerier(ctx, t.querier(), projectID)
}

func (t *sqliteTx) InsertBlocks(ctx context.Context, fileID int64, blocks []types.Block) error {
	return t.storage.insertBlocksWithQuerier(ctx, t.querier(), fileID, blocks)
}

func (t *sqliteTx) ListBlocksByFile(ctx context.Context, fileID int64) ([]*Block, error) {
	return t.storage.listBlocksByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) DeleteBlocksByFile(ctx context.Context, fileID int64) error {
	return t.storage.deleteBlocksByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) ListBlocksByHash(ctx context.Context, projectID int64, hash types.Hash) ([]*Block, error) {
	return t.storage.listBlocksByHashWithQuerier(ctx, t.querier(), projectID, hash)
}

func (t *sqliteTx) ListDuplicateBlocks(ctx context.Context, projectID int64) ([]*Block, error) {
	return t.storage.listDuplicateBlocksWithQuerier(ctx, t.querier(), projectID)
}

func (t *sqliteTx) RecordIndexRun(ctx context.Context, run *IndexRun) error {
	return t.storage.recordIndexRunWithQuerier(ctx, t.querier(), run)
}

func (t *sqliteTx) ListIndexRuns(ctx context.Context, projectID int64, limit int) ([]*IndexRun, error) {
	return t.storage.listIndexRunsWithQuerier(ctx, t.querier(), projectID, limit)
}

func (t *sqliteTx) GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier(), projectID)
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, ErrNestedTx
}
