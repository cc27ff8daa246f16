package storage

import (
	"context"
	"time"

	"github.com/dshills/gocpd/pkg/types"
)

// Storage defines the interface for persisting and querying block fingerprints
type Storage interface {
	// Project operations
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, rootPath string) (*Project, error)
	GetProjectByID(ctx context.Context, projectID int64) (*Project, error)
	UpdateProject(ctx context.Context, project *Project) error

	// File operations
	UpsertFile(ctx context.Context, file *File) error
	GetFile(ctx context.Context, projectID int64, filePath string) (*File, error)
	DeleteFile(ctx context.Context, fileID int64) error
	ListFiles(ctx context.Context, projectID int64) ([]*File, error)

	// Block operations
	InsertBlocks(ctx context.Context, fileID int64, blocks []types.Block) error
	ListBlocksByFile(ctx context.Context, fileID int64) ([]*Block, error)
	DeleteBlocksByFile(ctx context.Context, fileID int64) error
	ListBlocksByHash(ctx context.Context, projectID int64, hash types.Hash) ([]*Block, error)
	ListDuplicateBlocks(ctx context.Context, projectID int64) ([]*Block, error)

	// Index run history
	RecordIndexRun(ctx context.Context, run *IndexRun) error
	ListIndexRuns(ctx context.Context, projectID int64, limit int) ([]*IndexRun, error)

	// Status operations
	GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Project represents a fingerprinted codebase
type Project struct {
	ID            int64
	RootPath      string
	ModuleName    string
	BlockSize     int // Blocks of different sizes never compare equal
	TotalFiles    int
	TotalBlocks   int
	IndexVersion  string
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// File represents a tracked source file
type File struct {
	ID             int64
	ProjectID      int64
	FilePath       string // Relative to project root, used as the block resource ID
	ContentHash    [32]byte
	ModTime        time.Time
	SizeBytes      int64
	StatementCount int
	ParseError     *string // Nullable
	LastIndexedAt  time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Block is a stored fingerprint together with the file it came from
type Block struct {
	ID          int64
	FileID      int64
	FilePath    string // Filled by queries that join files
	Hash        types.Hash
	IndexInFile int
	StartLine   int
	EndLine     int
}

// IndexRun records the outcome of one indexing pass
type IndexRun struct {
	RunID         string
	ProjectID     int64
	FilesIndexed  int
	FilesSkipped  int
	FilesFailed   int
	BlocksCreated int
	Duration      time.Duration
	CreatedAt     time.Time
}

// ProjectStatus contains statistics about an indexed project
type ProjectStatus struct {
	Project         *Project
	FilesCount      int
	BlocksCount     int
	DuplicateHashes int
	FailedFiles     int
	IndexSizeMB     float64
	LastIndexedAt   time.Time
	Health          HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible bool
	SchemaVersion      string
}

// ToTypesBlock converts a stored block to types.Block using the file path as
// resource ID
func (b *Block) ToTypesBlock() types.Block {
	return types.NewBlock(b.FilePath, b.Hash, b.IndexInFile, b.StartLine, b.EndLine)
}
