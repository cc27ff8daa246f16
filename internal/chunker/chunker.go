package chunker

import (
	"fmt"

	"github.com/dshills/gocpd/pkg/types"
)

const (
	// PrimeBase is the multiplier of the rolling hash
	PrimeBase int64 = 31

	// DefaultBlockSize is the number of statements per block when no
	// configuration overrides it
	DefaultBlockSize = 10
)

// BlockChunker slides a fixed-size window over filtered statements and emits
// one fingerprinted block per window using a Rabin-Karp rolling hash:
//
//	s[0]*31^(blockSize-1) + s[1]*31^(blockSize-2) + ... + s[blockSize-1]
//
// where s[i] is the string hash of statement i. All arithmetic is int64 and
// wraps silently on overflow. Running time is O(N) in the statement count.
//
// A BlockChunker is immutable after construction and safe for concurrent use.
type BlockChunker struct {
	blockSize int
	power     int64 // 31^(blockSize-1), wrapped
}

// New creates a BlockChunker producing windows of blockSize statements
func New(blockSize int) (*BlockChunker, error) {
	if blockSize < 1 {
		return nil, fmt.Errorf("%w: got %d", types.ErrInvalidBlockSize, blockSize)
	}

	return &BlockChunker{
		blockSize: blockSize,
		power:     calculatePower(blockSize),
	}, nil
}

// MustNew is like New but panics on an invalid block size
func MustNew(blockSize int) *BlockChunker {
	c, err := New(blockSize)
	if err != nil {
		panic(err)
	}
	return c
}

// BlockSize returns the number of statements per block
func (c *BlockChunker) BlockSize() int {
	return c.blockSize
}

func calculatePower(blockSize int) int64 {
	pow := int64(1)
	for i := 0; i < blockSize-1; i++ {
		pow *= PrimeBase
	}
	return pow
}

// Chunk fingerprints the statements of one resource.
//
// The statements are compacted with FilterStatements first. If fewer than
// BlockSize statements remain the result is empty and the error is nil.
// Otherwise exactly M-BlockSize+1 blocks are returned, ordered by
// IndexInFile from 0.
//
// An empty resourceID or a nil statement slice is a caller error.
func (c *BlockChunker) Chunk(resourceID string, statements []types.Statement) ([]types.Block, error) {
	if resourceID == "" {
		return nil, types.ErrEmptyResourceID
	}
	if statements == nil {
		return nil, types.ErrNilStatements
	}

	filtered := FilterStatements(statements)
	if len(filtered) < c.blockSize {
		return []types.Block{}, nil
	}

	blocks := make([]types.Block, 0, len(filtered)-c.blockSize+1)
	hash := c.initializeHash(filtered)

	for first, last := 0, c.blockSize-1; last < len(filtered); first, last = first+1, last+1 {
		firstStatement := filtered[first]
		lastStatement := filtered[last]

		hash = hash*PrimeBase + statementHash(lastStatement.Value)
		blocks = append(blocks, types.NewBlock(
			resourceID,
			types.HashFromInt64(hash),
			first,
			firstStatement.StartLine,
			lastStatement.EndLine,
		))

		// Drop the leading term so hash covers blockSize-1 statements again
		hash -= c.power * statementHash(firstStatement.Value)
	}

	return blocks, nil
}

// initializeHash folds in the first blockSize-1 statements
func (c *BlockChunker) initializeHash(statements []types.Statement) int64 {
	var hash int64
	for i := 0; i < c.blockSize-1; i++ {
		hash = hash*PrimeBase + statementHash(statements[i].Value)
	}
	return hash
}

// WindowHash computes the fingerprint of a window from scratch by Horner
// evaluation. For any window of a BlockChunker it equals the rolling value.
func WindowHash(window []types.Statement) int64 {
	var hash int64
	for _, s := range window {
		hash = hash*PrimeBase + statementHash(s.Value)
	}
	return hash
}
